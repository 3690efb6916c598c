package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/agrimandi/agrimandi-go/apiclient"
)

// OTPMeta is the expiry metadata returned when an OTP is issued.
type OTPMeta struct {
	ExpiresInSeconds int `json:"expires_in"`
	ResendAfter      int `json:"resend_after"`
}

// ExpiresIn returns the OTP validity window as a duration.
func (m OTPMeta) ExpiresIn() time.Duration {
	return time.Duration(m.ExpiresInSeconds) * time.Second
}

// SendOTP requests a one-time code for the given phone number.
func (st *Store) SendOTP(ctx context.Context, phoneNumber string) (OTPMeta, error) {
	body := map[string]string{"phone_number": phoneNumber}
	resp, err := st.api.Post(ctx, apiclient.EndpointSendOTP, body, apiclient.WithoutUnauthorizedSignal())
	if err != nil {
		return OTPMeta{}, errors.Wrap(err, "[Store.SendOTP] request")
	}

	var meta OTPMeta
	if err := json.Unmarshal(resp.Body, &meta); err != nil {
		return OTPMeta{}, errors.Wrap(err, "[Store.SendOTP] decode")
	}
	return meta, nil
}

// VerifyOTP submits the one-time code. On success the backend marks the
// phone verified; when a session is active the local user record is
// updated to match.
func (st *Store) VerifyOTP(ctx context.Context, phoneNumber, code string) error {
	body := map[string]string{"phone_number": phoneNumber, "otp": code}
	if _, err := st.api.Post(ctx, apiclient.EndpointVerifyOTP, body, apiclient.WithoutUnauthorizedSignal()); err != nil {
		return errors.Wrap(err, "[Store.VerifyOTP] request")
	}

	st.mu.Lock()
	verified := st.state.User != nil && st.state.User.PhoneNumber == phoneNumber
	st.mu.Unlock()
	if verified {
		st.apply(func(s *State) {
			user := *s.User
			user.PhoneVerified = true
			s.User = &user
		})
	}
	return nil
}
