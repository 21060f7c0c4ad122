package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
)

// Prints a refresh token that lets the notifier send mail as the owner.
func main() {
	_ = godotenv.Load()

	clientID := os.Getenv("GMAIL_CLIENT_ID")
	clientSecret := os.Getenv("GMAIL_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		logrus.Fatal("Please set GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET (environment or .env)")
	}

	redirect := os.Getenv("GMAIL_REDIRECT_URL")
	if redirect == "" {
		redirect = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
	}

	authURL := config.AuthCodeURL("contact-intake", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Open this link and approve the send-only access:\n%v\n", authURL)
	fmt.Println("\nYou will be redirected; copy the 'code' query parameter.")

	var authCode string
	fmt.Print("\nAuthorization code: ")
	if _, err := fmt.Scan(&authCode); err != nil {
		logrus.Fatalf("Failed to read authorization code: %v", err)
	}

	tok, err := config.Exchange(context.Background(), authCode)
	if err != nil {
		logrus.Fatalf("Unable to exchange authorization code: %v", err)
	}
	if tok.RefreshToken == "" {
		logrus.Fatal("No refresh token returned; revoke the app's access and try again")
	}

	fmt.Println("\nAdd these to your environment or .env:")
	fmt.Println("NOTIFIER_DRIVER=gmail")
	fmt.Printf("GMAIL_REFRESH_TOKEN=%s\n", tok.RefreshToken)
}
