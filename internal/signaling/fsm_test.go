package signaling_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"enclave/internal/domain"
	"enclave/internal/signaling"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    domain.CallState
		ev      signaling.Event
		want    domain.CallState
		wantErr error
	}{
		{domain.CallIdle, signaling.Dial, domain.CallCalling, nil},
		{domain.CallIdle, signaling.Ring, domain.CallRinging, nil},
		{domain.CallRinging, signaling.Answer, domain.CallConnected, nil},
		{domain.CallCalling, signaling.Accepted, domain.CallConnected, nil},
		{domain.CallCalling, signaling.Hangup, domain.CallIdle, nil},
		{domain.CallRinging, signaling.Hangup, domain.CallIdle, nil},
		{domain.CallConnected, signaling.Hangup, domain.CallIdle, nil},

		{domain.CallCalling, signaling.Dial, domain.CallCalling, signaling.ErrBusy},
		{domain.CallConnected, signaling.Dial, domain.CallConnected, signaling.ErrBusy},
		{domain.CallRinging, signaling.Ring, domain.CallRinging, signaling.ErrBusy},
		{domain.CallConnected, signaling.Ring, domain.CallConnected, signaling.ErrBusy},
		{domain.CallIdle, signaling.Answer, domain.CallIdle, signaling.ErrInvalidTransition},
		{domain.CallCalling, signaling.Answer, domain.CallCalling, signaling.ErrInvalidTransition},
		{domain.CallRinging, signaling.Accepted, domain.CallRinging, signaling.ErrInvalidTransition},
		{domain.CallIdle, signaling.Hangup, domain.CallIdle, signaling.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			got, err := signaling.Next(tt.from, tt.ev)
			assert.Equal(t, tt.want, got)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
