package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/ZakWinnick/StatsForAdventure/internal/log"
	"github.com/ZakWinnick/StatsForAdventure/pkg/connector/rivian"
	"github.com/ZakWinnick/StatsForAdventure/pkg/proxy"
)

const (
	defaultPort       = 8443
	defaultSessionTTL = 24 * time.Hour
	defaultSweep      = 15 * time.Minute
	defaultUserAgent  = "rivian-http-proxy"
)

const (
	EnvTlsCert    = "RIVIAN_HTTP_PROXY_TLS_CERT"
	EnvTlsKey     = "RIVIAN_HTTP_PROXY_TLS_KEY"
	EnvHost       = "RIVIAN_HTTP_PROXY_HOST"
	EnvPort       = "RIVIAN_HTTP_PROXY_PORT"
	EnvTimeout    = "RIVIAN_HTTP_PROXY_TIMEOUT"
	EnvConfig     = "RIVIAN_HTTP_PROXY_CONFIG"
	EnvLogFile    = "RIVIAN_HTTP_PROXY_LOG_FILE"
	EnvSessionKey = "RIVIAN_HTTP_PROXY_SESSION_KEY"
	EnvVerbose    = "RIVIAN_VERBOSE"
)

const nonLocalhostWarning = `
Do not listen on a network interface without adding client authentication. Unauthorized clients
may be used to create excessive traffic from your IP address to Rivian's servers, which Rivian
may respond to by rate limiting or blocking your connections.`

type HttpProxyConfig struct {
	keyFilename    string
	certFilename   string
	configFilename string
	logFilename    string
	sessionKey     string
	verbose        bool
	host           string
	port           int
	timeout        time.Duration
	sessionTTL     time.Duration
	commandMaxAge  time.Duration
	sweepInterval  time.Duration
}

var (
	httpConfig = &HttpProxyConfig{}
)

func init() {
	flag.StringVar(&httpConfig.certFilename, "cert", "", "TLS certificate chain `file` with concatenated server, intermediate CA, and root CA certificates")
	flag.StringVar(&httpConfig.keyFilename, "tls-key", "", "Server TLS private key `file`")
	flag.StringVar(&httpConfig.configFilename, "config", "", "YAML configuration `file`; command-line flags and environment variables take precedence")
	flag.StringVar(&httpConfig.logFilename, "log-file", "", "Append logs to `file` with rotation instead of stderr")
	flag.StringVar(&httpConfig.sessionKey, "session-key", "", "Secret used to sign session tokens; generated at startup when omitted")
	flag.BoolVar(&httpConfig.verbose, "verbose", false, "Enable verbose logging")
	flag.StringVar(&httpConfig.host, "host", "localhost", "Proxy server `hostname`")
	flag.IntVar(&httpConfig.port, "port", defaultPort, "`Port` to listen on")
	flag.DurationVar(&httpConfig.timeout, "timeout", proxy.DefaultTimeout, "Timeout interval for upstream requests")
	flag.DurationVar(&httpConfig.sessionTTL, "session-ttl", defaultSessionTTL, "Lifetime of issued session tokens")
	flag.DurationVar(&httpConfig.commandMaxAge, "command-max-age", proxy.DefaultCommandMaxAge, "Age past which cached command records are evicted")
	flag.DurationVar(&httpConfig.sweepInterval, "sweep-interval", defaultSweep, "How often to evict stale command records and sessions")
}

func Usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [OPTION...]\n", os.Args[0])
	fmt.Fprintf(out, "\nA server that exposes a REST API for monitoring and sending commands to Rivian vehicles")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, nonLocalhostWarning)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Options:")
	flag.PrintDefaults()
}

func main() {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}()

	flag.Usage = Usage
	flag.Parse()
	if err = readFromEnvironment(); err != nil {
		return
	}
	if err = readFromConfigFile(); err != nil {
		return
	}

	if httpConfig.verbose {
		log.SetLevel(log.LevelDebug)
	}
	if httpConfig.logFilename != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   httpConfig.logFilename,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	if httpConfig.host != "localhost" {
		fmt.Fprintln(os.Stderr, nonLocalhostWarning)
	}

	signingKey := []byte(httpConfig.sessionKey)
	if len(signingKey) == 0 {
		// Sessions don't survive a restart either way, so an ephemeral key is fine.
		signingKey = make([]byte, 32)
		if _, err = rand.Read(signingKey); err != nil {
			return
		}
		log.Debug("Generated ephemeral session signing key")
	}

	log.Debug("Creating proxy")
	p := proxy.New(rivian.NewClient(defaultUserAgent), signingKey, httpConfig.sessionTTL)
	p.Timeout = httpConfig.timeout
	p.CommandMaxAge = httpConfig.commandMaxAge

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Sweep(ctx, httpConfig.sweepInterval)

	addr := fmt.Sprintf("%s:%d", httpConfig.host, httpConfig.port)
	log.Info("Listening on %s", addr)

	if httpConfig.certFilename == "" || httpConfig.keyFilename == "" {
		log.Warning("No TLS certificate provided, using a self-signed certificate")
		server, _ := NewServer(addr, p)
		log.Error("Server stopped: %s", server.ListenAndServeTLS("", ""))
		return
	}
	log.Error("Server stopped: %s", http.ListenAndServeTLS(addr, httpConfig.certFilename, httpConfig.keyFilename, p))
}

// readFromEnvironment applies configuration from environment variables.
// Values are not overwritten.
func readFromEnvironment() error {
	if httpConfig.certFilename == "" {
		httpConfig.certFilename = os.Getenv(EnvTlsCert)
	}

	if httpConfig.keyFilename == "" {
		httpConfig.keyFilename = os.Getenv(EnvTlsKey)
	}

	if httpConfig.configFilename == "" {
		httpConfig.configFilename = os.Getenv(EnvConfig)
	}

	if httpConfig.logFilename == "" {
		httpConfig.logFilename = os.Getenv(EnvLogFile)
	}

	if httpConfig.sessionKey == "" {
		httpConfig.sessionKey = os.Getenv(EnvSessionKey)
	}

	if httpConfig.host == "localhost" {
		host, ok := os.LookupEnv(EnvHost)
		if ok {
			httpConfig.host = host
		}
	}

	if !httpConfig.verbose {
		if verbose, ok := os.LookupEnv(EnvVerbose); ok {
			httpConfig.verbose = verbose != "false" && verbose != "0"
		}
	}

	var err error
	if httpConfig.port == defaultPort {
		if port, ok := os.LookupEnv(EnvPort); ok {
			httpConfig.port, err = strconv.Atoi(port)
			if err != nil {
				return fmt.Errorf("invalid port: %s", port)
			}
		}
	}

	if httpConfig.timeout == proxy.DefaultTimeout {
		if timeoutEnv, ok := os.LookupEnv(EnvTimeout); ok {
			httpConfig.timeout, err = time.ParseDuration(timeoutEnv)
			if err != nil {
				return fmt.Errorf("invalid timeout: %s", timeoutEnv)
			}
		}
	}

	return nil
}

type fileConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	TLSCert       string `yaml:"tls_cert"`
	TLSKey        string `yaml:"tls_key"`
	LogFile       string `yaml:"log_file"`
	SessionKey    string `yaml:"session_key"`
	Verbose       bool   `yaml:"verbose"`
	Timeout       string `yaml:"timeout"`
	SessionTTL    string `yaml:"session_ttl"`
	CommandMaxAge string `yaml:"command_max_age"`
	SweepInterval string `yaml:"sweep_interval"`
}

// parseDuration parses a YAML duration field, leaving fallback in place for an empty value.
func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

// readFromConfigFile applies settings from the YAML configuration file, filling in only values
// still at their defaults. A missing file is an error only when it was named explicitly.
func readFromConfigFile() error {
	if httpConfig.configFilename == "" {
		return nil
	}
	data, err := os.ReadFile(httpConfig.configFilename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", httpConfig.configFilename)
		}
		return err
	}
	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("invalid config file: %s", err)
	}

	if httpConfig.host == "localhost" && parsed.Host != "" {
		httpConfig.host = parsed.Host
	}
	if httpConfig.port == defaultPort && parsed.Port != 0 {
		httpConfig.port = parsed.Port
	}
	if httpConfig.certFilename == "" {
		httpConfig.certFilename = parsed.TLSCert
	}
	if httpConfig.keyFilename == "" {
		httpConfig.keyFilename = parsed.TLSKey
	}
	if httpConfig.logFilename == "" {
		httpConfig.logFilename = parsed.LogFile
	}
	if httpConfig.sessionKey == "" {
		httpConfig.sessionKey = parsed.SessionKey
	}
	if !httpConfig.verbose {
		httpConfig.verbose = parsed.Verbose
	}
	if httpConfig.timeout == proxy.DefaultTimeout {
		if httpConfig.timeout, err = parseDuration(parsed.Timeout, httpConfig.timeout); err != nil {
			return fmt.Errorf("invalid timeout: %s", parsed.Timeout)
		}
	}
	if httpConfig.sessionTTL == defaultSessionTTL {
		if httpConfig.sessionTTL, err = parseDuration(parsed.SessionTTL, httpConfig.sessionTTL); err != nil {
			return fmt.Errorf("invalid session_ttl: %s", parsed.SessionTTL)
		}
	}
	if httpConfig.commandMaxAge == proxy.DefaultCommandMaxAge {
		if httpConfig.commandMaxAge, err = parseDuration(parsed.CommandMaxAge, httpConfig.commandMaxAge); err != nil {
			return fmt.Errorf("invalid command_max_age: %s", parsed.CommandMaxAge)
		}
	}
	if httpConfig.sweepInterval == defaultSweep {
		if httpConfig.sweepInterval, err = parseDuration(parsed.SweepInterval, httpConfig.sweepInterval); err != nil {
			return fmt.Errorf("invalid sweep_interval: %s", parsed.SweepInterval)
		}
	}
	return nil
}
