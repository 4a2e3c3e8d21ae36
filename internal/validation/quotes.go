// Package validation provides structural checks for price quotes.
package validation

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/model"
	"github.com/yourorg/ring-price-oracle/internal/types"
)

// ValidateQuote checks that a quote is structurally usable: a parseable
// non-negative finite price, a confidence inside [0,1], and a timestamp that
// is neither missing nor from the future. Staleness is not an error here; it
// is a confidence signal applied upstream.
func ValidateQuote(q model.PriceQuote) error {
	if _, ok := q.ParsedPrice(); !ok {
		return fmt.Errorf("price %q does not parse as a non-negative finite decimal", q.Price)
	}
	if q.Confidence < 0 || q.Confidence > 1 {
		return fmt.Errorf("confidence %f outside [0,1]", q.Confidence)
	}
	if q.Timestamp <= 0 {
		return fmt.Errorf("missing timestamp")
	}
	if q.Timestamp > time.Now().Add(5*time.Minute).UnixMilli() {
		return fmt.Errorf("timestamp %d is in the future", q.Timestamp)
	}
	if q.Source == "" {
		return fmt.Errorf("missing source tag")
	}
	return nil
}

// FilterInvalid drops structurally invalid quotes from a multi-chain map,
// logging each rejection.
func FilterInvalid(quotes map[types.ChainID]model.PriceQuote) map[types.ChainID]model.PriceQuote {
	valid := make(map[types.ChainID]model.PriceQuote, len(quotes))
	for id, q := range quotes {
		if err := ValidateQuote(q); err != nil {
			logrus.WithFields(logrus.Fields{
				"chain":  id,
				"source": q.Source,
				"price":  q.Price,
			}).Debugf("Filtered invalid quote: %v", err)
			continue
		}
		valid[id] = q
	}
	return valid
}
