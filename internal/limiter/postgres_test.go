package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr         error
	qrBlockedTill *time.Time
	qrUpdatedAt   time.Time
	qrFailsRet    int

	lastArgs    []any
	lastExecSQL string
	execErr     error
}

func (f *fakePool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL, f.lastArgs = sql, args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastArgs = args
	switch {
	case strings.Contains(sql, "SELECT blocked_until"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			*(dest[0].(*time.Time)) = time.Time{}
			if f.qrBlockedTill != nil {
				*(dest[0].(*time.Time)) = *f.qrBlockedTill
			}
			*(dest[1].(*time.Time)) = f.qrUpdatedAt
			return nil
		}}
	case strings.Contains(sql, "RETURNING fail_count"):
		return fakeRow{scan: func(dest ...any) error {
			if f.qrErr != nil {
				return f.qrErr
			}
			*(dest[0].(*int)) = f.qrFailsRet
			return nil
		}}
	default:
		return fakeRow{scan: func(...any) error { return errors.New("unexpected query") }}
	}
}

var testPolicy = Policy{Window: 15 * time.Minute, MaxFails: 5, BlockFor: 10 * time.Minute}

func TestPG_Allow(t *testing.T) {
	ctx := context.Background()
	fut, past := time.Now().Add(10*time.Minute), time.Now().Add(-time.Minute)

	cases := []struct {
		name    string
		pool    *fakePool
		wantOK  bool
		wantErr bool
	}{
		{"no row", &fakePool{qrErr: pgx.ErrNoRows}, true, false},
		{"blocked", &fakePool{qrBlockedTill: &fut}, false, false},
		{"block expired", &fakePool{qrBlockedTill: &past}, true, false},
		{"db error", &fakePool{qrErr: errors.New("db boom")}, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, dur, err := NewPG(tc.pool, testPolicy).Allow(ctx, "U@x.io", []byte("h"))
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantOK, ok)
			if ok {
				require.Zero(t, dur)
			} else {
				require.Positive(t, dur)
			}
			require.Equal(t, "u@x.io", tc.pool.lastArgs[0])
		})
	}
}

func TestPG_Success(t *testing.T) {
	fp := &fakePool{}
	require.NoError(t, NewPG(fp, testPolicy).Success(context.Background(), "u@x.io", []byte("h")))
	require.Contains(t, fp.lastExecSQL, "INSERT INTO auth_limiter")

	fp = &fakePool{execErr: errors.New("exec fail")}
	require.Error(t, NewPG(fp, testPolicy).Success(context.Background(), "u@x.io", []byte("h")))
}

func TestPG_Failure(t *testing.T) {
	ctx := context.Background()

	fp := &fakePool{qrFailsRet: 2}
	blocked, dur, err := NewPG(fp, testPolicy).Failure(ctx, "u@x.io", []byte("h"))
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, dur)
	require.Empty(t, fp.lastExecSQL)

	fp = &fakePool{qrFailsRet: 5}
	blocked, dur, err = NewPG(fp, testPolicy).Failure(ctx, "u@x.io", []byte("h"))
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)
	require.Contains(t, fp.lastExecSQL, "UPDATE auth_limiter SET blocked_until")

	fp = &fakePool{qrErr: errors.New("query error")}
	_, _, err = NewPG(fp, testPolicy).Failure(ctx, "u@x.io", []byte("h"))
	require.Error(t, err)
}

func TestHashIP_Determinism(t *testing.T) {
	a, b, c := HashIP("1.2.3.4:123"), HashIP("1.2.3.4:123"), HashIP("5.6.7.8:321")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 32)
}
