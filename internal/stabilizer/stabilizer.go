// Package stabilizer drives a loaded browser page to a quiescent DOM
// before the crawler snapshots it. Many hotel sites inflate hero sections,
// carousels, and booking widgets asynchronously; waiting for networkidle is
// insufficient and a fixed sleep wastes time on static pages, so this
// package polls a cheap in-browser signature until it stops changing.
package stabilizer

import (
	"context"
	"time"

	"github.com/go-rod/rod"
)

// Params controls one convergence wait.
type Params struct {
	// QuietMS is how long the signature must be unchanged before success.
	QuietMS int
	// TimeoutMS bounds the total wait. Reaching it is success, not failure
	// — the stabilizer is a best-effort contract.
	TimeoutMS int
	// MinSignatureIntervalMS throttles how often the signature is
	// recomputed inside the browser.
	MinSignatureIntervalMS int
}

// DepthParams returns the depth-tuned defaults: the seed page (depth 0)
// gets a longer budget because hero/booking widgets there are heavier;
// deeper pages use a shorter budget.
func DepthParams(depth int) Params {
	if depth == 0 {
		return Params{QuietMS: 6000, TimeoutMS: 12000, MinSignatureIntervalMS: 400}
	}
	return Params{QuietMS: 4000, TimeoutMS: 8000, MinSignatureIntervalMS: 400}
}

// signatureJS computes "elementCount|textLength|djb2(normalizedText)" where
// normalizedText is body.innerText with whitespace runs collapsed. The hash
// here is unrelated to internal/contenthash's SHA-256 digest — it exists
// purely for cheap in-browser equality checks and must never be compared
// against a Content-Hash checksum.
const signatureJS = `() => {
	var text = (document.body && document.body.innerText) || '';
	var normalized = text.replace(/\s+/g, ' ').trim();
	var elementCount = document.querySelectorAll('*').length;
	var hash = 5381;
	for (var i = 0; i < normalized.length; i++) {
		hash = ((hash * 33) ^ normalized.charCodeAt(i)) >>> 0;
	}
	return elementCount + '|' + normalized.length + '|' + hash;
}`

// pollInterval is how often Wait checks elapsed time against the quiet and
// timeout budgets. It is independent of MinSignatureIntervalMS, which
// throttles signature recomputation specifically.
const pollInterval = 100 * time.Millisecond

// Wait blocks until page's DOM signature has been unchanged for at least
// p.QuietMS, or p.TimeoutMS has elapsed. It always returns nil: a timeout,
// ctx cancellation, and a failed signature Eval all end or skip the wait
// without an error.
func Wait(ctx context.Context, page *rod.Page, p Params) error {
	return converge(ctx, p, func() (string, error) {
		res, err := page.Eval(signatureJS)
		if err != nil {
			return "", err
		}
		return res.Value.Str(), nil
	})
}

// converge is the pure polling loop, independent of rod so it can be unit
// tested with a fake signature reader.
func converge(ctx context.Context, p Params, readSig func() (string, error)) error {
	deadline := time.Now().Add(time.Duration(p.TimeoutMS) * time.Millisecond)
	minInterval := time.Duration(p.MinSignatureIntervalMS) * time.Millisecond
	quiet := time.Duration(p.QuietMS) * time.Millisecond

	lastSig, err := readSig()
	if err != nil {
		// Page may be mid-navigation; treat as best-effort success rather
		// than aborting the crawl for this URL.
		return nil
	}
	lastChange := time.Now()
	lastComputed := time.Now()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if now.Sub(lastChange) >= quiet {
				return nil
			}
			if now.After(deadline) {
				return nil
			}
			if now.Sub(lastComputed) < minInterval {
				continue
			}
			lastComputed = now
			sig, err := readSig()
			if err != nil {
				continue
			}
			if sig != lastSig {
				lastSig = sig
				lastChange = now
			}
		}
	}
}
