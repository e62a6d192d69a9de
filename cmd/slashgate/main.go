package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/slashgate/internal/command"
	"github.com/mattjoyce/slashgate/internal/config"
	"github.com/mattjoyce/slashgate/internal/signature"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "serve":
		return runServe(args)
	case "check":
		return runCheck(args)
	case "keygen":
		return runKeygen(args)
	case "sign":
		return runSign(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `slashgate - signed interactions endpoint for slash commands

Usage:
  slashgate <command> [flags]

Commands:
  serve     Start the interactions server and follow-up dispatcher
  check     Load and validate configuration
  keygen    Generate an Ed25519 key pair for local testing
  sign      Print signature headers for a request body
  version   Show version information
  help      Show this help

Configuration:
  --config PATH, else $SLASHGATE_CONFIG, else ./slashgate.yaml if present.
  PUBLIC_KEY and PORT environment variables override the file.
`)
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	path := config.Discover(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration invalid: %v\n", err)
		return 1
	}

	source := cfg.SourcePath
	if source == "" {
		source = "(defaults and environment)"
	}

	fmt.Println("Configuration valid")
	fmt.Printf("  source:       %s\n", source)
	if cfg.Fingerprint != "" {
		fmt.Printf("  fingerprint:  %s\n", cfg.Fingerprint)
	}
	fmt.Printf("  listen:       %s\n", cfg.Server.Listen)
	fmt.Printf("  path:         %s\n", cfg.Server.Path)
	fmt.Printf("  public_key:   %s\n", hex.EncodeToString(cfg.PublicKey))
	fmt.Printf("  store:        %s\n", cfg.Store.Driver)
	fmt.Printf("  state:        %s\n", cfg.State.Path)
	fmt.Printf("  metrics:      %t\n", cfg.Server.Metrics)

	names := make([]string, 0)
	for _, c := range command.Builtins(command.Deps{}) {
		names = append(names, c.Name)
	}
	fmt.Printf("  commands:     %s\n", strings.Join(names, ", "))
	return 0
}

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output keys as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
		return 1
	}
	seed := hex.EncodeToString(priv.Seed())
	public := hex.EncodeToString(pub)

	if *jsonOut {
		data, _ := json.MarshalIndent(map[string]string{"seed": seed, "public_key": public}, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("seed:       %s\n", seed)
	fmt.Printf("public_key: %s\n", public)
	fmt.Fprintln(os.Stderr, "Keep the seed private. Set PUBLIC_KEY to the public key to test locally.")
	return 0
}

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	seedHex := fs.String("seed", "", "Hex Ed25519 seed (32 bytes), see keygen")
	body := fs.String("body", "", "Request body to sign")
	file := fs.String("file", "", "Read the request body from a file")
	timestamp := fs.String("timestamp", "", "Timestamp to sign (default: now, unix seconds)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	seed, err := hex.DecodeString(strings.TrimSpace(*seedHex))
	if err != nil || len(seed) != ed25519.SeedSize {
		fmt.Fprintf(os.Stderr, "--seed must be %d hex-encoded bytes\n", ed25519.SeedSize)
		return 1
	}

	if (*body == "") == (*file == "") {
		fmt.Fprintln(os.Stderr, "Exactly one of --body or --file is required")
		return 1
	}
	payload := []byte(*body)
	if *file != "" {
		payload, err = os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *file, err)
			return 1
		}
	}

	ts := *timestamp
	if ts == "" {
		ts = strconv.FormatInt(time.Now().Unix(), 10)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	fmt.Printf("%s: %s\n", signature.HeaderSignature, signature.Sign(priv, ts, payload))
	fmt.Printf("%s: %s\n", signature.HeaderTimestamp, ts)
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: slashgate version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("slashgate %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}
