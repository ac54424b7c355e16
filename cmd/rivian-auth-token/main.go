// Utility for logging into the cloud service and storing the resulting token set

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/ZakWinnick/StatsForAdventure/pkg/cli"
	"github.com/ZakWinnick/StatsForAdventure/pkg/connector/rivian"
)

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "usage: %s [-token-name token_name | -token-file file] -email address\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Logs into the cloud service interactively, walking the one-time passcode challenge")
	fmt.Fprintln(w, "when the account requires it, and saves the resulting token set in the system")
	fmt.Fprintf(w, "keyring or file. The token_name defaults to $%s.\n", cli.EnvRivianTokenName)
}

func readLine(prompt string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func main() {
	returnCode := 1
	defer func() {
		os.Exit(returnCode)
	}()

	config, err := cli.NewConfig(cli.FlagTokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credential configuration: %s\n", err)
		return
	}

	var email string
	flag.StringVar(&email, "email", "", "Account email address")
	config.RegisterCommandLineFlags()
	flag.Usage = usage
	flag.Parse()
	config.ReadFromEnvironment()

	if config.KeyringTokenName == "" && config.TokenFilename == "" {
		fmt.Fprintf(os.Stderr, "Must provide a place to save the token set using -token-name, -token-file, or $%s\n", cli.EnvRivianTokenName)
		return
	}

	if email == "" {
		email, err = readLine("Email")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading email: %s\n", err)
			return
		}
	}
	password, err := readPassword("Password")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %s\n", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rivian.DefaultTimeout)
	defer cancel()

	client := rivian.NewClient("rivian-auth-token")
	tokens, err := client.CreateCSRFToken(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error contacting cloud service: %s\n", err)
		return
	}
	result, err := client.Authenticate(ctx, tokens, email, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %s\n", err)
		return
	}

	if result.OTPNeeded {
		otpCode, err := readLine("One-time passcode")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading passcode: %s\n", err)
			return
		}
		result, err = client.ValidateOTP(ctx, result.Tokens, email, otpCode, result.OTPToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Passcode validation failed: %s\n", err)
			return
		}
	}

	if !result.Tokens.Complete() {
		fmt.Fprintln(os.Stderr, "Cloud service issued an incomplete token set")
		return
	}

	if err := config.SaveTokenSet(result.Tokens); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving token set: %s\n", err)
		return
	}

	fmt.Println("Token set saved.")
	returnCode = 0
}
