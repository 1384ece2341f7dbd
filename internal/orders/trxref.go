package orders

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const trxRefLetters = "abcdefghijklmnopqrstuvwxyz"

// NewTrxRef returns a reference of the form wb.<5 letters>-<0..999>-<0..99><unix-ms>.
func NewTrxRef(now time.Time) string {
	var b strings.Builder
	for range 5 {
		b.WriteByte(trxRefLetters[rand.IntN(len(trxRefLetters))])
	}
	return fmt.Sprintf("wb.%s-%d-%d%d", b.String(), rand.IntN(1000), rand.IntN(100), now.UnixMilli())
}
