// Command gs is a CLI client for the goph-share Vault service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/and161185/goph-share/internal/server/grpc"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "gophshare")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gophshare")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenSubject returns the user id carried by a saved token without verifying it.
func tokenSubject(tok string) (string, error) {
	var c jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &c); err != nil {
		return "", err
	}
	return c.Subject, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type dialOpts struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
}

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(o dialOpts, bearer string) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if o.plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(o.caPath, o.insecure); err != nil {
			return nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !o.plaintext}))
	}
	return grpc.NewClient(o.addr, opts...)
}

// invoke calls a Vault method with a JSON object as its argument.
func invoke(ctx context.Context, cc grpc.ClientConnInterface, method string, args map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(args)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, grpcserver.FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

// parseArgs decodes a JSON object given inline, as @file, or as "-" for stdin.
func parseArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	b := []byte(raw)
	if raw == "-" || strings.HasPrefix(raw, "@") {
		var err error
		if b, err = readAll(strings.TrimPrefix(raw, "@")); err != nil {
			return nil, err
		}
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("args: %w", err)
	}
	return s.AsMap(), nil
}

func printJSON(v any) {
	if s, ok := v.(*structpb.Struct); ok {
		v = s.AsMap()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `gs CLI
Usage:
  gs -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  register   -name <name> -email <email> -p <password>
  login      -email <email> -p <password> [-otp code]  (saves token)
  verify     -challenge <token> -otp <code>        (finishes a two-factor login)
  logout
  whoami
  accounts   [-q keyword] [-page N] [-limit N]
  reveal     -id <uuid> [-hlp high-level-password]
  invite     -kind account|workspace -id <uuid> -email <email> [-role READ]
  pending    -kind account|workspace
  confirm    -kind account|workspace -id <invitation uuid>
  decline    -kind account|workspace -id <invitation uuid>
  call       <Method> [json | @file | -]           (any Vault method)
`)
	os.Exit(2)
}

// finishLogin stores the access token from a Login or VerifyTwoFA reply.
func finishLogin(f map[string]*structpb.Value) {
	exp, err := time.Parse(time.RFC3339, f["expiresAt"].GetStringValue())
	if err != nil {
		fail(fmt.Errorf("login: bad expiresAt: %w", err))
	}
	if err := saveToken(f["accessToken"].GetStringValue(), exp); err != nil {
		fail(err)
	}
	fmt.Printf("logged in as %s, token valid until %s\n", f["email"].GetStringValue(), exp.Local().Format(time.RFC3339))
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	var o dialOpts
	flag.StringVar(&o.addr, "addr", "localhost:8443", "server addr")
	flag.StringVar(&o.caPath, "cacert", "", "CA cert (PEM)")
	flag.BoolVar(&o.insecure, "insecure", false, "skip cert verify (dev)")
	flag.BoolVar(&o.plaintext, "plaintext", false, "no TLS (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, rest := flag.Arg(0), flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Printf("gs %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(rest)
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}
		out := call(ctx, o, false, "Register", map[string]any{"name": *name, "email": *email, "password": *p})
		fmt.Println(out.GetFields()["userId"].GetStringValue())

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		code := fs.String("otp", "", "one-time code when two-factor is on")
		_ = fs.Parse(rest)
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}
		f := call(ctx, o, false, "Login", map[string]any{"email": *email, "password": *p}).GetFields()
		challenge := f["challenge"].GetStringValue()
		if challenge == "" {
			finishLogin(f)
			break
		}
		if f["twoFa"].GetStringValue() == "TWO_FA_ENABLED_NO_SECRET" {
			setup := call(ctx, o, false, "BeginTwoFA", map[string]any{"challenge": challenge}).GetFields()
			fmt.Printf("add this key to your authenticator app:\n  %s\n  %s\n",
				setup["secret"].GetStringValue(), setup["otpauth"].GetStringValue())
			challenge = setup["challenge"].GetStringValue()
		}
		if *code == "" {
			fmt.Printf("two-factor code required, run:\n  gs verify -challenge %s -otp <code>\n", challenge)
			break
		}
		finishLogin(call(ctx, o, false, "VerifyTwoFA", map[string]any{"challenge": challenge, "code": *code}).GetFields())

	case "verify":
		fs := flag.NewFlagSet("verify", flag.ExitOnError)
		challenge := fs.String("challenge", "", "challenge from login")
		code := fs.String("otp", "", "one-time code")
		_ = fs.Parse(rest)
		if *challenge == "" || *code == "" {
			fmt.Fprintln(os.Stderr, "need -challenge and -otp")
			os.Exit(1)
		}
		finishLogin(call(ctx, o, false, "VerifyTwoFA", map[string]any{"challenge": *challenge, "code": *code}).GetFields())

	case "logout":
		if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			fail(err)
		}

	case "whoami":
		tok, err := loadToken()
		if err != nil {
			fail(err)
		}
		sub, err := tokenSubject(tok)
		if err != nil {
			fail(err)
		}
		fmt.Println(sub)

	case "accounts":
		fs := flag.NewFlagSet("accounts", flag.ExitOnError)
		q := fs.String("q", "", "keyword")
		page := fs.Int("page", 1, "page")
		limit := fs.Int("limit", 20, "page size")
		_ = fs.Parse(rest)
		printJSON(call(ctx, o, true, "ListAccounts", map[string]any{"keyword": *q, "page": *page, "limit": *limit}))

	case "reveal":
		fs := flag.NewFlagSet("reveal", flag.ExitOnError)
		id := fs.String("id", "", "account id")
		hlp := fs.String("hlp", "", "high-level password, if enabled")
		_ = fs.Parse(rest)
		out := call(ctx, o, true, "RevealPassword", map[string]any{"id": *id, "highLevelPassword": *hlp})
		fmt.Println(out.GetFields()["password"].GetStringValue())

	case "invite":
		fs := flag.NewFlagSet("invite", flag.ExitOnError)
		kind := fs.String("kind", "account", "resource kind")
		id := fs.String("id", "", "resource id")
		email := fs.String("email", "", "invitee email")
		role := fs.String("role", "READ", "role to grant")
		_ = fs.Parse(rest)
		printJSON(call(ctx, o, true, "InviteMembers", map[string]any{
			"kind":       *kind,
			"resourceId": *id,
			"invitees":   []any{map[string]any{"email": *email, "role": *role}},
		}))

	case "pending":
		fs := flag.NewFlagSet("pending", flag.ExitOnError)
		kind := fs.String("kind", "account", "resource kind")
		_ = fs.Parse(rest)
		printJSON(call(ctx, o, true, "ListInvitations", map[string]any{"kind": *kind}))

	case "confirm", "decline":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		kind := fs.String("kind", "account", "resource kind")
		id := fs.String("id", "", "invitation id")
		_ = fs.Parse(rest)
		method := "ConfirmInvitation"
		if cmd == "decline" {
			method = "DeclineInvitation"
		}
		printJSON(call(ctx, o, true, method, map[string]any{"kind": *kind, "id": *id}))

	case "call":
		if len(rest) < 1 {
			usage()
		}
		raw := ""
		if len(rest) > 1 {
			raw = rest[1]
		}
		args, err := parseArgs(raw)
		if err != nil {
			fail(err)
		}
		printJSON(call(ctx, o, !publicMethod(rest[0]), rest[0], args))

	default:
		usage()
	}
}

// ---- helpers ----

func publicMethod(name string) bool {
	return slices.Contains(grpcserver.PublicMethods, grpcserver.FullMethod(name))
}

// call dials, invokes one method and exits on failure.
func call(ctx context.Context, o dialOpts, authed bool, method string, args map[string]any) *structpb.Struct {
	bearer := ""
	if authed {
		tok, err := loadToken()
		if err != nil {
			fail(err)
		}
		bearer = tok
	}
	cc, err := dial(o, bearer)
	if err != nil {
		fail(err)
	}
	defer cc.Close()
	out, err := invoke(ctx, cc, method, args)
	if err != nil {
		fail(err)
	}
	return out
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		reason := grpcserver.ReasonOf(err)
		fmt.Fprintf(os.Stderr, "rpc error: code=%s reason=%s msg=%s\n", s.Code(), reason, s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
