// Package transport mirrors the logistics surface: available vehicles and
// the user's transport bookings.
package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
	"github.com/agrimandi/agrimandi-go/session"
	"github.com/agrimandi/agrimandi-go/stores"
)

// BookingStatus is the booking lifecycle.
type BookingStatus string

const (
	BookingRequested BookingStatus = "requested"
	BookingConfirmed BookingStatus = "confirmed"
	BookingInTransit BookingStatus = "in_transit"
	BookingDelivered BookingStatus = "delivered"
	BookingCancelled BookingStatus = "cancelled"
)

// Vehicle is an available transport vehicle.
type Vehicle struct {
	ID               string  `json:"id"`
	TransporterID    string  `json:"transporter_id"`
	RegistrationNo   string  `json:"registration_no"`
	VehicleType      string  `json:"vehicle_type"`
	CapacityQuintals float64 `json:"capacity_quintals"`
	RatePerKm        float64 `json:"rate_per_km"`
	Available        bool    `json:"available"`
}

// Booking is a transport booking for a lot.
type Booking struct {
	ID         string        `json:"id"`
	VehicleID  string        `json:"vehicle_id"`
	LotID      string        `json:"lot_id"`
	BookedByID string        `json:"booked_by_id"`
	Pickup     string        `json:"pickup"`
	DropOff    string        `json:"drop_off"`
	Status     BookingStatus `json:"status"`
	PickupAt   time.Time     `json:"pickup_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Store caches vehicles and bookings.
type Store struct {
	Vehicles *stores.Collection[Vehicle]
	Bookings *stores.Collection[Booking]
	api      *apiclient.Client
}

func NewStore(api *apiclient.Client, sess *session.Store) *Store {
	s := &Store{api: api}
	s.Vehicles = stores.NewCollection("transport.vehicles", s.fetchVehicles, func(v Vehicle) string { return v.ID })
	s.Bookings = stores.NewCollection("transport.bookings", s.fetchBookings, func(b Booking) string { return b.ID })
	sess.OnLogout(s.Reset)
	return s
}

func (s *Store) fetchVehicles(ctx context.Context) ([]Vehicle, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointTransportVehicles)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Vehicle](resp.Body)
}

func (s *Store) fetchBookings(ctx context.Context) ([]Booking, error) {
	resp, err := s.api.Get(ctx, apiclient.EndpointTransportBookings)
	if err != nil {
		return nil, err
	}
	return apiclient.DecodeList[Booking](resp.Body)
}

// Book requests a vehicle for a lot and folds the confirmed booking into
// the local cache. Not optimistic: a booking that might not exist is
// worse UX than a short wait, and double submission must be impossible.
func (s *Store) Book(ctx context.Context, draft Booking) (Booking, error) {
	resp, err := s.api.Post(ctx, apiclient.EndpointTransportBookings, draft)
	if err != nil {
		return Booking{}, errors.Wrap(err, "[transport.Book] request")
	}
	booked, err := apiclient.DecodeOne[Booking](resp.Body)
	if err != nil {
		return Booking{}, errors.Wrap(err, "[transport.Book] decode")
	}
	tag := s.Bookings.StageAdd(booked)
	_ = s.Bookings.Confirm(tag)
	return booked, nil
}

// Reset clears both caches.
func (s *Store) Reset() {
	s.Vehicles.Reset()
	s.Bookings.Reset()
}
