package tools

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setflow/callsheet-cli/pkg/geocode"
)

type fakeGeocoder struct {
	result geocode.Result
	err    error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, address, region string) (*geocode.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.result
	return &r, nil
}

func (f *fakeGeocoder) BatchGeocode(ctx context.Context, addresses []string, region string) ([]geocode.Result, error) {
	out := make([]geocode.Result, len(addresses))
	for i := range out {
		out[i] = f.result
	}
	return out, f.err
}

func TestDispatch_GeocodeAddress(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeGeocoder{result: geocode.Result{
		FormattedAddress: "Rustenschacherallee 9, 1020 Wien, Austria",
		Latitude:         48.19,
		Longitude:        16.41,
		Matched:          true,
	}})

	res, err := exec.Dispatch(context.Background(), "geocode_address", map[string]any{
		"address": "Rustenschacherallee 9",
	})
	require.NoError(t, err)

	geo, ok := res.(*GeocodeResult)
	require.True(t, ok)
	assert.Equal(t, "Rustenschacherallee 9, 1020 Wien, Austria", geo.Address)
	assert.InDelta(t, 0.9, geo.Confidence, 1e-9)
	assert.InDelta(t, 48.19, geo.Lat, 1e-9)
}

func TestDispatch_GeocodeUnmatched(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeGeocoder{result: geocode.Result{Matched: false}})

	res, err := exec.Dispatch(context.Background(), "geocode_address", map[string]any{
		"address": "Nirgendwo 99",
	})
	require.NoError(t, err)

	geo := res.(*GeocodeResult)
	assert.Zero(t, geo.Confidence)
	assert.Equal(t, "Nirgendwo 99", geo.Address)
}

func TestDispatch_GeocodeErrors(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(&fakeGeocoder{err: eris.New("quota exceeded")})
	_, err := exec.Dispatch(context.Background(), "geocode_address", map[string]any{"address": "X-Gasse 1"})
	assert.Error(t, err)

	_, err = exec.Dispatch(context.Background(), "geocode_address", map[string]any{"address": "  "})
	assert.Error(t, err)

	noGeo := NewExecutor(nil)
	_, err = noGeo.Dispatch(context.Background(), "geocode_address", map[string]any{"address": "X-Gasse 1"})
	assert.Error(t, err)
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()

	exec := NewExecutor(nil)
	_, err := exec.Dispatch(context.Background(), "rm_rf", nil)
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"whitespace collapsed", "Rustenschacherallee   9 ,  Wien", "Rustenschacherallee 9, Wien"},
		{"comma spacing", "Prater 1,Wien", "Prater 1, Wien"},
		{"street abbreviation", "Hauptstr. 5", "Hauptstraße 5"},
		{"capital abbreviation", "Berliner Str. 12", "Berliner Straße 12"},
		{"already clean", "Graben 21, Wien", "Graben 21, Wien"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeAddress(tt.raw).Normalized)
		})
	}
}
