package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/99designs/keyring"
	"golang.org/x/term"

	"github.com/ZakWinnick/StatsForAdventure/pkg/account"
)

const (
	keyringServiceName  = "com.rivian.proxy"
	keyringTokenService = "tokenset"
	keyringDirectory    = "~/.rivian_keys"
)

type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	value := keyring.BackendType(v)
	if b.config == nil {
		return fmt.Errorf("invalid backendType")
	}
	if v == "" {
		return nil
	}
	for _, name := range keyring.AvailableBackends() {
		if name == value {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
	}
	return fmt.Errorf("unsupported credential storage")
}

func (c *Config) getPassword(prompt string) (string, error) {
	if c.password != nil && *c.password != "" {
		return *c.password, nil
	}

	var w io.Writer
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		fd = int(os.Stderr.Fd())
		if !term.IsTerminal(fd) {
			return "", fmt.Errorf("no terminal output available for password prompt")
		} else {
			w = os.Stderr
		}
	} else {
		w = os.Stdout
	}

	fmt.Fprintf(w, "%s: ", prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w)
	password := string(b)
	c.password = &password
	return password, nil
}

func (c *Config) openKeyring() (keyring.Keyring, error) {
	return keyring.Open(c.Backend)
}

func (c *Config) fullTokenName() string {
	return keyringTokenService + "." + c.KeyringTokenName
}

// LoadTokenSet loads the token set from the location specified in c, preferring the token file
// when both a file and a keyring name are configured.
func (c *Config) LoadTokenSet() (account.TokenSet, error) {
	var tokens account.TokenSet
	if c.TokenFilename == "" && c.KeyringTokenName == "" {
		return tokens, ErrNoTokenSpecified
	}

	var data []byte
	var err error
	if c.TokenFilename != "" {
		data, err = os.ReadFile(c.TokenFilename)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return tokens, err
		}
		// Fall through to the system keyring if the token file doesn't exist.
	}
	if data == nil && c.KeyringTokenName != "" {
		data, err = c.loadTokenSetFromKeyring()
		if err != nil {
			return tokens, err
		}
	}
	if data == nil {
		return tokens, ErrNoTokenSpecified
	}

	if err := json.Unmarshal(data, &tokens); err != nil {
		return tokens, fmt.Errorf("invalid token set: %s", err)
	}
	return tokens, nil
}

func (c *Config) loadTokenSetFromKeyring() ([]byte, error) {
	kr, err := c.openKeyring()
	if err != nil {
		return nil, err
	}
	item, err := kr.Get(c.fullTokenName())
	if err != nil {
		return nil, fmt.Errorf("could not load token set: %s", err)
	}
	return item.Data, nil
}

// SaveTokenSet writes the token set to the system keyring or file, depending on what options
// are configured. The method prefers the keyring if both options are available.
func (c *Config) SaveTokenSet(tokens account.TokenSet) error {
	data, err := json.Marshal(&tokens)
	if err != nil {
		return err
	}
	if c.KeyringTokenName != "" {
		return c.saveTokenSetToKeyring(data)
	}
	if c.TokenFilename != "" {
		return os.WriteFile(c.TokenFilename, data, 0600)
	}
	return ErrNoTokenSpecified
}

func (c *Config) saveTokenSetToKeyring(data []byte) error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	if err := kr.Set(keyring.Item{
		Key:  c.fullTokenName(),
		Data: data,
	}); err != nil {
		return fmt.Errorf("failed to enroll token set in keyring: %s", err)
	}
	return nil
}

// DeleteTokenSet removes the token set from the system keyring.
func (c *Config) DeleteTokenSet() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	return kr.Remove(c.fullTokenName())
}
