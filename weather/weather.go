// Package weather mirrors the advisory weather report.
package weather

import (
	"context"
	"time"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// DayForecast is one day of the forecast window.
type DayForecast struct {
	Date          string  `json:"date"`
	MinTempC      float64 `json:"min_temp_c"`
	MaxTempC      float64 `json:"max_temp_c"`
	RainChancePct int     `json:"rain_chance_pct"`
	Summary       string  `json:"summary"`
}

// Report is the current conditions plus forecast for the user's district.
type Report struct {
	District    string        `json:"district"`
	TempC       float64       `json:"temp_c"`
	HumidityPct int           `json:"humidity_pct"`
	WindKmph    float64       `json:"wind_kmph"`
	Summary     string        `json:"summary"`
	Forecast    []DayForecast `json:"forecast"`
	FetchedAt   time.Time     `json:"fetched_at"`
}

// Store caches the weather report.
type Store struct {
	*stores.Single[Report]
	api *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Single = stores.NewSingle("weather", s.load)
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) load(ctx context.Context) (Report, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointWeather)
	if err != nil {
		return Report{}, err
	}
	return apiclient.DecodeOne[Report](resp.Body)
}

// FetchFor loads the report for a specific district.
func (s *Store) FetchFor(ctx context.Context, district string) error {
	resp, err := s.api.Get(ctx, apiclient.EndpointWeather, apiclient.WithQuery("district", district))
	if err != nil {
		return err
	}
	report, err := apiclient.DecodeOne[Report](resp.Body)
	if err != nil {
		return err
	}
	s.Set(report)
	return nil
}
