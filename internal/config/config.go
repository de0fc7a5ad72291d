// Package config gathers the module-global mutable options spec.md §9
// warns against keeping as process state (verbosity, JSON output,
// peephole on/off, protocol selector) into one immutable value built once
// by the CLI driver and threaded through every pipeline call.
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Protocol selects the target network's address/constant conventions
// (spec.md §6's --protocol flag).
type Protocol string

const (
	Mainnet  Protocol = "mainnet"
	Zeronet  Protocol = "zeronet"
	Alphanet Protocol = "alphanet"
)

// Config is the immutable bundle every pipeline call receives. Build one
// with Default, LoadFile and LoadEnv and pass it by value from there on;
// nothing downstream of the
// CLI driver mutates it.
type Config struct {
	Verbose     bool
	JSON        bool
	Compact     bool
	Peephole    bool
	TypeOnly    bool
	ParseOnly   bool
	MainName    string
	OutputDir   string
	Protocol    Protocol
	TezosNode   string
	Amount      string
	Fee         string
	Source      string
	PrivateKey  string
	Signature   string
	Counter     int64
}

// File is the shape of the optional stackc.yml project file: CLI flags
// always win over anything loaded here.
type File struct {
	OutputDir string `yaml:"output_dir"`
	Protocol  string `yaml:"protocol"`
	Peephole  *bool  `yaml:"peephole"`
	TezosNode string `yaml:"tezos_node"`
}

// Default returns the zero-value-safe baseline that LoadFile, LoadEnv and
// the CLI flags are applied on top of.
func Default() Config {
	return Config{
		Peephole: true,
		MainName: "main",
		Protocol: Mainnet,
	}
}

// LoadFile reads a YAML project file (stackc.yml) if present, applying its
// values on top of base. A missing file is not an error — the project
// file is entirely optional.
func LoadFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return base, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return base, err
	}
	if f.OutputDir != "" {
		base.OutputDir = f.OutputDir
	}
	if f.Protocol != "" {
		base.Protocol = Protocol(f.Protocol)
	}
	if f.Peephole != nil {
		base.Peephole = *f.Peephole
	}
	if f.TezosNode != "" {
		base.TezosNode = f.TezosNode
	}
	return base, nil
}

// LoadEnv applies .env overrides for node/RPC defaults (local dev
// ergonomics, not a deployment mechanism). A missing .env file is silently
// ignored, matching the teacher's own `_ = godotenv.Load()` call sites.
func LoadEnv(base Config) Config {
	_ = godotenv.Load()
	if v := os.Getenv("STACKC_TEZOS_NODE"); v != "" {
		base.TezosNode = v
	}
	if v := os.Getenv("STACKC_PROTOCOL"); v != "" {
		base.Protocol = Protocol(v)
	}
	return base
}

// Logger builds the single package-level logger the CLI driver and this
// package use; no other package logs directly (library packages return
// errors instead).
func Logger(c Config) *logrus.Logger {
	l := logrus.New()
	if c.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	if c.Verbose {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}
