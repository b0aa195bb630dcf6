package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/x/term"
	"gopkg.in/yaml.v3"

	"bankchat/internal/dispatch"
	"bankchat/internal/session"
)

const maxPINAttempts = 3

type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func Run() int {
	return run(os.Args[1:], streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func run(args []string, std streams) int {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return runTUI(args, std)
	}
	switch args[0] {
	case "tui":
		return runTUI(args[1:], std)
	case "chat":
		return runChat(args[1:], std)
	case "send":
		return runSend(args[1:], std)
	case "catalog":
		return runCatalog(args[1:], std)
	default:
		usage(std.err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "bankchat <command> [options]")
	fmt.Fprintln(w, "Commands: tui, chat, send, catalog")
}

func runChat(args []string, std streams) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, err := common.resolveConfig()
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	ctx, cancel := contextWithSignals()
	defer cancel()
	a, err := newApp(ctx, cfg, std.err)
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	defer a.Close()

	in := bufio.NewScanner(std.in)
	fmt.Fprintln(std.out, "\n🤖 Banking AI - ABC Bank")
	printed := 0
	flush := func() {
		snap := a.store.Get()
		for _, msg := range snap.Transcript[printed:] {
			if msg.Sender == session.SenderAssistant {
				fmt.Fprintf(std.out, "Bot: %s\n", msg.Text)
			}
		}
		printed = len(snap.Transcript)
	}

	if a.dispatcher.Handshake() == dispatch.HandshakeExplicit {
		if !chatLogin(ctx, a, in, std, flush) {
			return 1
		}
		fmt.Fprintln(std.out, "💡 Try: 'Check my balance', 'deposit 1000', 'statement', 'transfer 100 ABC5678'")
	} else {
		fmt.Fprintln(std.out, "💡 Start with your account number.")
	}

	for {
		fmt.Fprint(std.out, "You: ")
		if !in.Scan() {
			fmt.Fprintln(std.out)
			return 0
		}
		text := strings.TrimSpace(in.Text())
		if strings.EqualFold(text, "exit") {
			fmt.Fprintln(std.out, farewell(a.store.Get()))
			return 0
		}
		if err := a.dispatcher.Submit(ctx, text, false); err != nil {
			fmt.Fprintln(std.err, err)
		}
		flush()
		if ctx.Err() != nil {
			return 1
		}
	}
}

// chatLogin reads the account number and up to three PINs.
func chatLogin(ctx context.Context, a *app, in *bufio.Scanner, std streams, flush func()) bool {
	var account string
	for {
		fmt.Fprint(std.out, "🔢 Account Number: ")
		if !in.Scan() {
			return false
		}
		account = strings.ToUpper(strings.TrimSpace(in.Text()))
		if session.ValidAccountNumber(account) {
			break
		}
		fmt.Fprintln(std.out, "❌ Invalid account format, expected ABC1234.")
	}

	for attempt := 1; attempt <= maxPINAttempts; attempt++ {
		pin, ok := readPIN(in, std)
		if !ok {
			return false
		}
		err := a.dispatcher.Login(ctx, account, pin)
		switch {
		case errors.Is(err, dispatch.ErrInvalidPIN):
			fmt.Fprintln(std.out, "❌ PIN must be exactly 4 digits.")
		case err != nil:
			fmt.Fprintln(std.err, err)
			return false
		default:
			flush()
		}
		snap := a.store.Get()
		if snap.Verified {
			name := snap.DisplayName
			if name == "" {
				name = snap.Credentials.AccountNumber
			}
			fmt.Fprintf(std.out, "🔓 Welcome %s! 😊\n", name)
			return true
		}
		if left := maxPINAttempts - attempt; left > 0 {
			fmt.Fprintf(std.out, "❌ Attempts left: %d\n", left)
		}
	}
	fmt.Fprintln(std.out, "⛔ Account Locked!")
	return false
}

func readPIN(in *bufio.Scanner, std streams) (string, bool) {
	fmt.Fprint(std.out, "🔐 PIN: ")
	if f, ok := std.in.(*os.File); ok && term.IsTerminal(f.Fd()) {
		data, err := term.ReadPassword(f.Fd())
		fmt.Fprintln(std.out)
		if err != nil {
			return "", false
		}
		return strings.TrimSpace(string(data)), true
	}
	if !in.Scan() {
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

func farewell(snap session.Snapshot) string {
	if snap.DisplayName != "" {
		return fmt.Sprintf("👋 Bye %s, thanks for banking with us!", snap.DisplayName)
	}
	return "👋 Bye, thanks for banking with us!"
}

func runSend(args []string, std streams) int {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := addCommonFlags(fs)
	account := fs.String("account", "", "account number (ABC1234)")
	pin := fs.String("pin", "", "4-digit PIN")
	format := fs.String("format", "pretty", "output format: pretty|json|yaml")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(std.err, "usage: bankchat send --account ABC1234 --pin 1234 \"message\"")
		return 1
	}
	message := strings.Join(fs.Args(), " ")

	cfg, err := common.resolveConfig()
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	ctx, cancel := contextWithSignals()
	defer cancel()
	a, err := newApp(ctx, cfg, std.err)
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	defer a.Close()

	if *account != "" || *pin != "" {
		if err := a.dispatcher.Login(ctx, strings.ToUpper(*account), *pin); err != nil {
			fmt.Fprintln(std.err, err)
			return 1
		}
		if !a.store.Get().Verified {
			_ = printTranscript(std.out, a.store, *format)
			return 2
		}
	}
	if err := a.dispatcher.Submit(ctx, message, false); err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	if err := printTranscript(std.out, a.store, *format); err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	return 0
}

func printTranscript(w io.Writer, store *session.Store, format string) error {
	snap := store.Get()
	switch format {
	case "json":
		return session.ExportTranscript(w, snap, session.FormatJSON, store.Now())
	case "yaml":
		return session.ExportTranscript(w, snap, session.FormatYAML, store.Now())
	}
	for _, msg := range snap.Transcript {
		label := "You"
		if msg.Sender == session.SenderAssistant {
			label = "Bot"
		}
		fmt.Fprintf(w, "%s: %s\n", label, msg.Text)
	}
	return nil
}

func runCatalog(args []string, std streams) int {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := addCommonFlags(fs)
	format := fs.String("format", "pretty", "output format: pretty|json|yaml")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	cfg, err := common.resolveConfig()
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	a, err := newApp(context.Background(), cfg, nil)
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	defer a.Close()

	entries := a.catalog.Entries()
	switch *format {
	case "json":
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Fprintln(std.out, string(data))
	case "yaml":
		enc := yaml.NewEncoder(std.out)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			fmt.Fprintln(std.err, err)
			return 1
		}
		_ = enc.Close()
	default:
		for _, e := range entries {
			fmt.Fprintln(std.out, e.Category)
			for _, cmd := range e.Commands {
				fmt.Fprintf(std.out, "  %-20s %s\n", cmd.Label, cmd.Prompt)
			}
		}
	}
	return 0
}

func contextWithSignals() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
