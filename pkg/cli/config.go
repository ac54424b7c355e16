/*
Package cli facilitates building command-line applications that talk to the Rivian cloud
service. It defines a [Config] type that registers common command-line flags (using the Golang
flag package) and environment variable equivalents.

The package uses [keyring]'s platform-agnostic interface for storing the sensitive token set an
interactive login produces in an OS-dependent credential store.

# Examples

	import flag

	config, err := cli.NewConfig(cli.FlagTokens)
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment() // Fills in missing fields using environment variables

	tokens, err := config.LoadTokenSet() // Prompts for keyring password if needed
*/
package cli

import (
	"errors"
	"flag"
	"os"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvRivianTokenName    = "RIVIAN_TOKEN_NAME"
	EnvRivianTokenFile    = "RIVIAN_TOKEN_FILE"
	EnvRivianKeyringType  = "RIVIAN_KEYRING_TYPE"
	EnvRivianKeyringPass  = "RIVIAN_KEYRING_PASSWORD"
	EnvRivianKeyringPath  = "RIVIAN_KEYRING_PATH"
	EnvRivianKeyringDebug = "RIVIAN_KEYRING_DEBUG"
)

// Flag controls what options should be scanned from the command line and/or environment
// variables.
type Flag int

func (f Flag) isSet(other Flag) bool {
	return (f & other) == other
}

const (
	FlagTokens Flag = 1 // Enable token storage options.
	FlagAll    Flag = FlagTokens
)

var (
	ErrNoTokenSpecified = errors.New("token location not provided")
	ErrTokenNotFound    = keyring.ErrKeyNotFound
)

// Config fields determine where a client stores and loads its cloud service token set.
type Config struct {
	Flags            Flag   // Controls which set of environment variables/CLI flags to use.
	KeyringTokenName string // Username for the token set in the system keyring
	TokenFilename    string
	Backend          keyring.Config
	BackendType      backendType
	Debug            bool // Enable keyring debug messages

	password *string
}

func NewConfig(flags Flag) (*Config, error) {
	c := Config{
		Flags: flags,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	if c.Flags.isSet(FlagTokens) {
		flag.StringVar(&c.KeyringTokenName, "token-name", "", "System keyring `name` for the token set. Defaults to $RIVIAN_TOKEN_NAME.")
		flag.StringVar(&c.TokenFilename, "token-file", "", "`File` containing the token set. Defaults to $RIVIAN_TOKEN_FILE.")

		var names []string
		for _, name := range keyring.AvailableBackends() {
			names = append(names, string(name))
		}
		sort.Strings(names)
		flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $RIVIAN_KEYRING_TYPE.")
		flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
		flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
	}
}

// ReadFromEnvironment populates c using environment variables. Values that are already
// populated are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() will prevent the environment from overriding
// explicit command-line parameters.
func (c *Config) ReadFromEnvironment() {
	if !c.Flags.isSet(FlagTokens) {
		return
	}
	if c.KeyringTokenName == "" && c.TokenFilename == "" {
		c.KeyringTokenName = os.Getenv(EnvRivianTokenName)
		log.Debug("Set token name to '%s'", c.KeyringTokenName)

		c.TokenFilename = os.Getenv(EnvRivianTokenFile)
		log.Debug("Set token file to '%s'", c.TokenFilename)
	}
	if c.BackendType.String() == string(keyring.InvalidBackend) {
		if err := c.BackendType.Set(os.Getenv(EnvRivianKeyringType)); err == nil {
			log.Debug("Set keyring type to '%s'", c.BackendType)
		}
	}
	if c.password == nil {
		password := os.Getenv(EnvRivianKeyringPass)
		c.password = &password
		if len(password) > 0 {
			log.Debug("Set keyring password from environment")
		}
	}
	if c.Backend.FileDir == "" {
		c.Backend.FileDir = os.Getenv(EnvRivianKeyringPath)
		log.Debug("Set keyring file path to '%s'", c.Backend.FileDir)
	}
	if !c.Debug {
		_, c.Debug = os.LookupEnv(EnvRivianKeyringDebug)
		log.Debug("Set keyring debug logging to '%v'", c.Debug)
	}
}
