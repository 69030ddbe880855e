// Package generator creates random passwords and passphrases and estimates
// how long a brute-force search for them would take.
package generator

import (
	"crypto/rand"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-diceware/diceware"
)

const (
	DefaultLength = 16

	// Guesses per second assumed by CrackTime.
	classicalRate = 1e9
	quantumRate   = 1e6
)

var (
	digits = "0123456789"
	upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lower  = "abcdefghijklmnopqrstuvwxyz"

	alnum     = digits + upper + lower
	printable = printableASCII()
)

// printableASCII returns the characters 33 through 126.
func printableASCII() string {
	var b strings.Builder
	for c := byte(33); c <= 126; c++ {
		b.WriteByte(c)
	}
	return b.String()
}

// Alphabet returns the characters Password draws from.
func Alphabet(withSpecial bool) string {
	if withSpecial {
		return printable
	}
	return alnum
}

// Password returns length characters drawn uniformly without repetition from
// the printable ASCII range, or from digits and letters when withSpecial is
// false.
func Password(length int, withSpecial bool) (string, error) {
	alphabet := []byte(Alphabet(withSpecial))
	if length < 1 || length > len(alphabet) {
		return "", errors.Errorf("password length must be between 1 and %d, got %d", len(alphabet), length)
	}
	// Partial Fisher-Yates: the first length positions end up a uniform
	// sample without replacement.
	for i := 0; i < length; i++ {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet)-i)))
		if err != nil {
			return "", errors.Wrap(err, "read random index")
		}
		k := i + int(j.Int64())
		alphabet[i], alphabet[k] = alphabet[k], alphabet[i]
	}
	return string(alphabet[:length]), nil
}

// Passphrase returns words diceware words joined with dashes.
func Passphrase(words int) (string, error) {
	if words < 1 {
		return "", errors.Errorf("passphrase needs at least one word, got %d", words)
	}
	list, err := diceware.Generate(words)
	if err != nil {
		return "", errors.Wrap(err, "generate diceware words")
	}
	return strings.Join(list, "-"), nil
}

// CrackTime estimates an exhaustive search over the alphanumeric alphabet for
// a password of the same length: half the keyspace at a billion guesses per
// second classically, and the square root of the keyspace at a million per
// second for a Grover-style search. Results saturate at the largest Duration.
func CrackTime(password string) (classical, quantum time.Duration) {
	n := float64(len([]rune(password)))
	space := math.Pow(float64(len(alnum)), n)
	return seconds(space / 2 / classicalRate), seconds(math.Sqrt(space) / quantumRate)
}

func seconds(s float64) time.Duration {
	d := s * float64(time.Second)
	if d >= math.MaxInt64 || math.IsInf(d, 0) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
