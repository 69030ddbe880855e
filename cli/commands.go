package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fahmaliyi/passvault/config"
	"github.com/fahmaliyi/passvault/generator"
	"github.com/fahmaliyi/passvault/vault"
)

// Exit codes returned by Run.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitRejected = 2
)

// App runs one command against the store named in its config.
type App struct {
	Vault  *vault.Vault
	Config config.Config
	Log    zerolog.Logger

	stdin       io.Reader
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	copyText    func(string) error
	runTUI      func(*App) error
}

func NewApp(v *vault.Vault, cfg config.Config, log zerolog.Logger, stdin io.Reader, out io.Writer) *App {
	_, tty := terminalFd(stdin)
	return &App{
		Vault:       v,
		Config:      cfg,
		Log:         log,
		stdin:       stdin,
		in:          bufio.NewReader(stdin),
		out:         out,
		interactive: tty,
		copyText:    clipboard.WriteAll,
		runTUI:      RunTUI,
	}
}

func (a *App) path() string { return a.Config.Store.Path }

func (a *App) usage() {
	fmt.Fprint(a.out, `Usage:

	passvault [-config FILE] [-file STORE] COMMAND [ARGS...]

The commands are:

add    SERVICE USERNAME [PASSWORD [MASTER_KEY]]
       store a credential; PASSWORD "-" generates one
get    [-copy] SERVICE [MASTER_KEY]
       show a credential, optionally copying the password to the clipboard
list   list stored services
drop   delete every stored credential after verifying the master key
gen    [-length N] [-special=BOOL] [-words N]
       generate a password or a diceware passphrase
tui    browse the store interactively
`)
}

// Run executes the command in args (without the program name) and returns
// the process exit code.
func (a *App) Run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "No arguments provided.")
		a.usage()
		return ExitError
	}

	cmd, rest := args[0], args[1:]
	if cmd != "gen" && a.Config.Store.GitIgnore {
		if err := AddIgnorePath(".gitignore", filepath.ToSlash(a.path())); err != nil {
			a.Log.Warn().Err(err).Msg("cannot update .gitignore")
		}
	}
	if a.interactive && cmd != "tui" {
		ClearScreen(a.out)
	}

	var code int
	var err error
	switch cmd {
	case "add":
		code, err = a.add(rest)
	case "get":
		code, err = a.get(rest)
	case "list":
		code, err = a.list(rest)
	case "drop":
		code, err = a.drop(rest)
	case "gen":
		code, err = a.gen(rest)
	case "tui":
		err = a.runTUI(a)
	default:
		fmt.Fprintln(a.out, "Invalid arguments.")
		a.usage()
		return ExitError
	}
	if err != nil {
		a.Log.Error().Err(err).Str("command", cmd).Msg("command failed")
		fmt.Fprintln(a.out, "Error:", err)
		return ExitError
	}
	return code
}

func (a *App) invalid() (int, error) {
	fmt.Fprintln(a.out, "Invalid arguments.")
	a.usage()
	return ExitError, nil
}

// readSecret prompts for a secret, masking it on a terminal and reading a
// plain line otherwise.
func (a *App) readSecret(prompt string, masked bool) (string, error) {
	if fd, ok := terminalFd(a.stdin); ok {
		var b []byte
		var err error
		if masked {
			b, err = ReadPasswordMasked(fd, a.in, a.out, prompt)
		} else {
			b, err = ReadPassword(fd, a.out, prompt)
		}
		if err != nil {
			return "", errors.Wrap(err, "read secret")
		}
		return takeSecret(b), nil
	}
	fmt.Fprint(a.out, prompt)
	line, err := readLine(a.in)
	fmt.Fprintln(a.out)
	if err != nil {
		return "", errors.Wrap(err, "read secret")
	}
	return line, nil
}

func (a *App) masterKey(args []string, i int) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	return a.readSecret("Master key: ", true)
}

// promptExit waits for Enter and clears the screen, on a terminal only.
func (a *App) promptExit() {
	if !a.interactive {
		return
	}
	fmt.Fprint(a.out, "\nPress Enter to exit. ")
	_, _ = readLine(a.in)
	ClearScreen(a.out)
}

func (a *App) get(args []string) (int, error) {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(a.out)
	copyPw := fs.Bool("copy", false, "copy the password to the clipboard")
	if err := fs.Parse(args); err != nil {
		return ExitError, nil
	}
	args = fs.Args()
	if len(args) < 1 || len(args) > 2 {
		return a.invalid()
	}
	service := args[0]
	mk, err := a.masterKey(args, 1)
	if err != nil {
		return ExitError, err
	}

	cred, err := a.Vault.GetPassword(a.path(), service, mk)
	if errors.Is(err, vault.ErrNotFound) {
		fmt.Fprintln(a.out, "Service not found or invalid master key.")
		a.promptExit()
		return ExitRejected, nil
	}
	if err != nil {
		return ExitError, err
	}

	fmt.Fprintf(a.out, "Service: %s\n", capitalize(service))
	fmt.Fprintf(a.out, "Username: %s\n", cred.Username)
	if !cred.PasswordOK {
		fmt.Fprintln(a.out, "Password: <unreadable>")
		a.promptExit()
		return ExitOK, nil
	}
	if *copyPw {
		return a.copyPassword(cred.Password)
	}
	fmt.Fprintf(a.out, "Password: %s\n", cred.Password)
	a.promptExit()
	return ExitOK, nil
}

// copyPassword puts pw on the clipboard and clears it after the configured
// delay or when the user presses Enter. It must be the last reader of a.in.
func (a *App) copyPassword(pw string) (int, error) {
	if err := a.copyText(pw); err != nil {
		return ExitError, errors.Wrap(err, "copy to clipboard")
	}
	after := a.Config.Clipboard.ClearAfter
	fmt.Fprintf(a.out, "Password copied to clipboard. Clearing in %s or when you press Enter...\n", after)
	waitEnterOrTimeout(a.in, after)
	if err := a.copyText(""); err != nil {
		return ExitError, errors.Wrap(err, "clear clipboard")
	}
	fmt.Fprintln(a.out, "Clipboard cleared.")
	if a.interactive {
		ClearScreen(a.out)
	}
	return ExitOK, nil
}

func (a *App) list(args []string) (int, error) {
	if len(args) != 0 {
		return a.invalid()
	}
	services, err := a.Vault.ListServices(a.path())
	if err != nil {
		return ExitError, errors.Wrap(err, "load services")
	}
	if len(services) == 0 {
		fmt.Fprintln(a.out, "No services found.")
	} else {
		fmt.Fprintln(a.out, "Services:")
		for i, s := range services {
			fmt.Fprintf(a.out, "%d. %s\n", i+1, capitalize(s))
		}
	}
	a.promptExit()
	return ExitOK, nil
}

func (a *App) drop(args []string) (int, error) {
	if len(args) != 0 {
		return a.invalid()
	}
	mk, err := a.readSecret("If you are sure you want to delete all passwords, type your master key and press Enter: ", true)
	if err != nil {
		return ExitError, err
	}
	dropped, err := a.Vault.Drop(a.path(), mk)
	if err != nil {
		return ExitError, errors.Wrap(err, "delete passwords")
	}
	code := ExitOK
	if dropped {
		fmt.Fprintln(a.out, "All passwords have been deleted.")
	} else {
		fmt.Fprintln(a.out, "Invalid master key.")
		code = ExitRejected
	}
	a.promptExit()
	return code, nil
}

func (a *App) gen(args []string) (int, error) {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(a.out)
	length := fs.Int("length", a.Config.Generator.Length, "password length")
	special := fs.Bool("special", a.Config.Generator.Special, "include punctuation")
	words := fs.Int("words", 0, "generate a diceware passphrase with this many words instead")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ExitError, nil
	}

	var pw string
	var err error
	if *words > 0 {
		pw, err = generator.Passphrase(*words)
	} else {
		pw, err = generator.Password(*length, *special)
	}
	if err != nil {
		return ExitError, err
	}
	classical, quantum := generator.CrackTime(pw)
	fmt.Fprintf(a.out, "Password: %s\n", pw)
	fmt.Fprintf(a.out, "Estimated brute-force time (classical): %s\n", humanDuration(classical))
	fmt.Fprintf(a.out, "Estimated brute-force time (quantum): %s\n", humanDuration(quantum))
	return ExitOK, nil
}

func humanDuration(d time.Duration) string {
	const year = 365 * 24 * time.Hour
	if d >= year {
		return fmt.Sprintf("%.0f years", d.Hours()/year.Hours())
	}
	return d.Round(time.Millisecond).String()
}

// Main is the entry point shared by the binary: it parses global flags,
// loads the configuration and runs the command.
func Main(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("passvault", flag.ContinueOnError)
	fs.SetOutput(stdout)
	cfgPath := fs.String("config", "", "path to a YAML config file")
	storePath := fs.String("file", "", "path to the password store")
	if err := fs.Parse(args); err != nil {
		return ExitError
	}

	var cfg config.Config
	var err error
	if *cfgPath != "" {
		cfg, err = config.LoadFile(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(stdout, "Error loading configuration:", err)
		return ExitError
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}

	log := config.NewLogger(cfg)
	v := vault.New(vault.WithLogger(log))
	return NewApp(v, cfg, log, stdin, stdout).Run(fs.Args())
}
