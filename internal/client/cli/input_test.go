package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	require.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleTextEmptyEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader(""))
	var out bytes.Buffer
	_, err := GetSimpleText(in, "Name?", &out)
	require.Error(t, err)
}

func stubTerminal(t *testing.T, tty bool, pw []byte, pwErr error) {
	t.Helper()
	oldTerm, oldRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = oldTerm, oldRead })
	isTerminal = func(int) bool { return tty }
	readPassword = func(int) ([]byte, error) { return pw, pwErr }
}

func TestGetSecret_Terminal(t *testing.T) {
	stubTerminal(t, true, []byte("  s3cret \n"), nil)
	var out bytes.Buffer
	got, err := GetSecret(bufio.NewReader(strings.NewReader("ignored\n")), "Token", &out)
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)
	require.Equal(t, "Token: \n", out.String())
}

func TestGetSecret_TerminalError(t *testing.T) {
	stubTerminal(t, true, nil, errors.New("boom"))
	var out bytes.Buffer
	_, err := GetSecret(bufio.NewReader(strings.NewReader("")), "Token", &out)
	require.Error(t, err)
}

func TestGetSecret_Piped(t *testing.T) {
	stubTerminal(t, false, nil, errors.New("must not be called"))
	var out bytes.Buffer
	got, err := GetSecret(bufio.NewReader(strings.NewReader("from-pipe\n")), "Token", &out)
	require.NoError(t, err)
	require.Equal(t, "from-pipe", got)
}
