// Package tools implements the trusted server-side executor for the agent
// loop's declared tools. Tool calls from the model are dispatched here and
// never executed client-side.
package tools

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/setflow/callsheet-cli/pkg/geocode"
)

// GeocodeResult is the payload returned for a geocode_address call.
type GeocodeResult struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Confidence float64 `json:"confidence"`
	Address    string  `json:"address"`
}

// NormalizeResult is the payload returned for an address_normalize call.
type NormalizeResult struct {
	Normalized string `json:"normalized"`
}

// Executor dispatches agent tool calls.
type Executor struct {
	geocoder geocode.Client
}

// NewExecutor creates an Executor. geocoder may be nil, in which case
// geocode_address reports an error result to the model.
func NewExecutor(geocoder geocode.Client) *Executor {
	return &Executor{geocoder: geocoder}
}

// Dispatch runs the named tool with JSON-decoded arguments and returns the
// JSON-encodable result.
func (e *Executor) Dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "geocode_address":
		addr, _ := args["address"].(string)
		return e.geocodeAddress(ctx, addr)
	case "address_normalize":
		raw, _ := args["raw"].(string)
		return NormalizeAddress(raw), nil
	default:
		return nil, eris.Errorf("tools: unknown tool %q", name)
	}
}

func (e *Executor) geocodeAddress(ctx context.Context, address string) (*GeocodeResult, error) {
	if strings.TrimSpace(address) == "" {
		return nil, eris.New("tools: geocode_address requires an address")
	}
	if e.geocoder == nil {
		return nil, eris.New("tools: geocoder not configured")
	}

	res, err := e.geocoder.Geocode(ctx, address, "")
	if err != nil {
		zap.L().Warn("tools: geocode_address failed",
			zap.String("address", address),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "tools: geocode_address")
	}
	if !res.Matched {
		return &GeocodeResult{Address: address, Confidence: 0}, nil
	}
	return &GeocodeResult{
		Lat:        res.Latitude,
		Lng:        res.Longitude,
		Confidence: 0.9,
		Address:    res.FormattedAddress,
	}, nil
}

var spaceRunRe = regexp.MustCompile(`\s+`)

// NormalizeAddress cleans up a raw address string: collapses whitespace,
// unifies comma spacing and expands the common German street abbreviation.
func NormalizeAddress(raw string) NormalizeResult {
	s := spaceRunRe.ReplaceAllString(strings.TrimSpace(raw), " ")
	s = strings.ReplaceAll(s, " ,", ",")
	s = strings.ReplaceAll(s, ",", ", ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "str.", "straße")
	s = strings.ReplaceAll(s, "Str.", "Straße")
	return NormalizeResult{Normalized: strings.TrimSpace(s)}
}
