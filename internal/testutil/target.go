// Package testutil provides deterministic helpers and scripted fake
// simulator binaries for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteScript writes an executable /bin/sh script into a fresh temp dir and
// returns its path.
func WriteScript(t testing.TB, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}

// EchoTarget returns a target that prints stdout and stderr lines, then exits
// with code.
func EchoTarget(t testing.TB, stdout, stderr []string, code int) string {
	t.Helper()
	var b strings.Builder
	for _, line := range stdout {
		fmt.Fprintf(&b, "printf '%%s\\n' %s\n", shellQuote(line))
	}
	for _, line := range stderr {
		fmt.Fprintf(&b, "printf '%%s\\n' %s >&2\n", shellQuote(line))
	}
	fmt.Fprintf(&b, "exit %d", code)
	return WriteScript(t, "echo-target", b.String())
}

// HangingTarget returns a target that prints lines and then sleeps far past
// any test deadline. With ignoreTerm the script and its children ignore
// SIGTERM, so only SIGKILL stops them.
func HangingTarget(t testing.TB, lines []string, ignoreTerm bool) string {
	t.Helper()
	var b strings.Builder
	if ignoreTerm {
		b.WriteString("trap '' TERM\n")
	}
	for _, line := range lines {
		fmt.Fprintf(&b, "printf '%%s\\n' %s\n", shellQuote(line))
	}
	b.WriteString("sleep 30\n")
	return WriteScript(t, "hanging-target", b.String())
}

// FakeSimulator returns a scripted dining-philosophers simulator taking
// "<n> <die> <eat> <sleep> [quota]".
//
// Behaviour:
//   - bad arguments print an "Error:" line and exit 1
//   - one philosopher takes one fork and dies at <die>
//   - die < 2*eat makes philosopher 2 die at <die> after the first round
//   - otherwise every philosopher eats once per round; with a quota the run
//     ends with the summary line, without one it loops until killed
//
// Timestamps are computed, not measured, so output is deterministic.
func FakeSimulator(t testing.TB) string {
	t.Helper()
	return WriteScript(t, "fake-philo", fakeSimulatorBody)
}

const fakeSimulatorBody = `if [ $# -lt 4 ] || [ $# -gt 5 ]; then
  echo "Error: expected 4 or 5 arguments"
  exit 1
fi
for a in "$@"; do
  case "$a" in
    ''|*[!0-9]*) echo "Error: invalid argument: $a"; exit 1 ;;
  esac
  if [ "$a" -le 0 ]; then
    echo "Error: arguments must be positive"
    exit 1
  fi
done
n=$1; die=$2; eat=$3; nap=$4; quota=${5:-0}

if [ "$n" -eq 1 ]; then
  echo "0 1 has taken a fork"
  echo "$die 1 died"
  exit 0
fi

if [ "$die" -lt $((eat * 2)) ]; then
  i=1
  while [ $i -le $n ]; do
    echo "0 $i has taken a fork"; echo "0 $i has taken a fork"; echo "0 $i is eating"
    i=$((i + 2))
  done
  echo "$eat 1 is sleeping"
  echo "$die 2 died"
  exit 0
fi

t=0; r=0
while :; do
  i=1
  while [ $i -le $n ]; do
    echo "$t $i has taken a fork"; echo "$t $i has taken a fork"; echo "$t $i is eating"
    i=$((i + 1))
  done
  i=1
  while [ $i -le $n ]; do echo "$((t + eat)) $i is sleeping"; i=$((i + 1)); done
  i=1
  while [ $i -le $n ]; do echo "$((t + eat + nap)) $i is thinking"; i=$((i + 1)); done
  r=$((r + 1)); t=$((t + eat + nap))
  if [ "$quota" -gt 0 ] && [ $r -ge "$quota" ]; then
    echo "All philosophers have eaten enough"
    exit 0
  fi
  sleep 0.05
done`

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
