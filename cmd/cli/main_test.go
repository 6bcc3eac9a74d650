package main

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	grpcserver "github.com/and161185/goph-share/internal/server/grpc"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return filepath.Join(dir, "gophshare")
}

func Test_cfgDir_And_Paths(t *testing.T) {
	base := withTmpConfig(t)
	require.Equal(t, base, cfgDir())
	require.True(t, strings.HasPrefix(tokenPath(), base))
	require.True(t, strings.HasSuffix(tokenPath(), "token.json"))
}

func Test_token_SaveLoad(t *testing.T) {
	_ = withTmpConfig(t)

	_, err := loadToken()
	require.Error(t, err, "token file missing")

	require.NoError(t, saveToken("tok", time.Now().Add(time.Minute)))
	tok, err := loadToken()
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	fi, err := os.Stat(tokenPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	require.NoError(t, saveToken("tok2", time.Now().Add(-time.Minute)))
	_, err = loadToken()
	require.Error(t, err, "expired token")
}

func Test_tokenSubject(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte("k"))
	require.NoError(t, err)

	sub, err := tokenSubject(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", sub)

	_, err = tokenSubject("garbage")
	require.Error(t, err)
}

func Test_parseArgs(t *testing.T) {
	t.Parallel()

	m, err := parseArgs("")
	require.NoError(t, err)
	require.Empty(t, m)

	m, err = parseArgs(`{"kind":"account","page":2}`)
	require.NoError(t, err)
	require.Equal(t, "account", m["kind"])
	require.Equal(t, float64(2), m["page"])

	p := filepath.Join(t.TempDir(), "args.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"id":"x"}`), 0o600))
	m, err = parseArgs("@" + p)
	require.NoError(t, err)
	require.Equal(t, "x", m["id"])

	_, err = parseArgs(`[1,2]`)
	require.Error(t, err)
}

func Test_readAll_Stdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()
	go func() { _, _ = io.WriteString(w, "from-stdin"); _ = w.Close() }()

	b, err := readAll("-")
	require.NoError(t, err)
	require.Equal(t, "from-stdin", string(b))
}

func Test_publicMethod(t *testing.T) {
	t.Parallel()
	require.True(t, publicMethod("Login"))
	require.True(t, publicMethod("Register"))
	require.False(t, publicMethod("ListAccounts"))
}

func Test_bearerCreds(t *testing.T) {
	t.Parallel()
	md, err := bearerCreds{token: "abc", secure: true}.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", md["authorization"])
	require.True(t, bearerCreds{secure: true}.RequireTransportSecurity())
	require.False(t, bearerCreds{}.RequireTransportSecurity())
}

func Test_loadTLS(t *testing.T) {
	t.Parallel()

	c, err := loadTLS("", true)
	require.NoError(t, err)
	require.NotNil(t, c)

	bad := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = loadTLS(bad, false)
	require.Error(t, err)

	_, err = loadTLS(filepath.Join(t.TempDir(), "missing.pem"), false)
	require.Error(t, err)
}

func Test_invoke_RoundTrip(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	var got map[string]any
	gs.RegisterService(&grpc.ServiceDesc{
		ServiceName: grpcserver.ServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{{
			MethodName: "Echo",
			Handler: func(_ any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				got = in.AsMap()
				return structpb.NewStruct(map[string]any{"ok": true})
			},
		}},
	}, struct{}{})
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := invoke(ctx, cc, "Echo", map[string]any{"id": "x"})
	require.NoError(t, err)
	require.Equal(t, "x", got["id"])
	require.True(t, out.GetFields()["ok"].GetBoolValue())
}
