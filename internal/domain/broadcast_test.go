package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid lowercase", input: "completed", want: StatusCompleted},
		{name: "valid uppercase with spaces", input: " PROCESSING ", want: StatusProcessing},
		{name: "invalid", input: "failed", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseMediaTypeFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseMediaTypeFromString(" Image ")
	if err != nil {
		t.Fatalf("ParseMediaTypeFromString() unexpected error = %v", err)
	}
	if got != MediaTypeImage {
		t.Fatalf("ParseMediaTypeFromString() = %s, want %s", got, MediaTypeImage)
	}

	_, err = ParseMediaTypeFromString("sticker")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseMediaTypeFromString() error = %v, want ErrValidation", err)
	}
}

func TestBatchRequestValidate(t *testing.T) {
	t.Parallel()

	mediaURL := "https://cdn.example.com/promo.jpg"
	image := MediaTypeImage
	sticker := MediaType("sticker")
	blank := "  "

	base := BatchRequest{
		BatchID:     "b1",
		Recipients:  []Recipient{{Address: "905551112233", DisplayName: "Ayse"}},
		MessageText: "hello",
	}

	tests := []struct {
		name    string
		mutate  func(*BatchRequest)
		wantErr bool
	}{
		{
			name:   "valid text broadcast",
			mutate: func(r *BatchRequest) {},
		},
		{
			name: "valid media only broadcast",
			mutate: func(r *BatchRequest) {
				r.MessageText = ""
				r.MediaURL = &mediaURL
				r.MediaType = &image
			},
		},
		{
			name: "empty recipients degrade gracefully",
			mutate: func(r *BatchRequest) {
				r.Recipients = nil
			},
		},
		{
			name: "missing batch id",
			mutate: func(r *BatchRequest) {
				r.BatchID = " "
			},
			wantErr: true,
		},
		{
			name: "missing text and media",
			mutate: func(r *BatchRequest) {
				r.MessageText = ""
				r.MediaURL = &blank
			},
			wantErr: true,
		},
		{
			name: "media url without type",
			mutate: func(r *BatchRequest) {
				r.MediaURL = &mediaURL
			},
			wantErr: true,
		},
		{
			name: "invalid media type",
			mutate: func(r *BatchRequest) {
				r.MediaURL = &mediaURL
				r.MediaType = &sticker
			},
			wantErr: true,
		},
		{
			name: "message over limit",
			mutate: func(r *BatchRequest) {
				r.MessageText = strings.Repeat("ğ", MaxMessageContent+1)
			},
			wantErr: true,
		},
		{
			name: "too many recipients",
			mutate: func(r *BatchRequest) {
				r.Recipients = make([]Recipient, MaxRecipients+1)
				for i := range r.Recipients {
					r.Recipients[i].Address = "90555"
				}
			},
			wantErr: true,
		},
		{
			name: "recipient without address",
			mutate: func(r *BatchRequest) {
				r.Recipients = append(r.Recipients, Recipient{DisplayName: "nobody"})
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			current.Recipients = append([]Recipient(nil), base.Recipients...)
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestBatchRequestDeliveryFor(t *testing.T) {
	t.Parallel()

	mediaURL := "https://cdn.example.com/menu.pdf"
	doc := MediaTypeDocument
	req := BatchRequest{
		BatchID:     "b1",
		MessageText: "menu",
		MediaURL:    &mediaURL,
		MediaType:   &doc,
	}

	d := req.DeliveryFor(Recipient{Address: "905551112233", DisplayName: "Mehmet"})
	if d.Address != "905551112233" || d.DisplayName != "Mehmet" {
		t.Fatalf("delivery recipient = %+v", d)
	}
	if d.MessageText != "menu" || d.MediaURL != mediaURL || d.MediaType != MediaTypeDocument {
		t.Fatalf("delivery payload = %+v", d)
	}
	if !d.HasMedia() {
		t.Fatal("HasMedia() = false, want true")
	}

	plain := BatchRequest{BatchID: "b2", MessageText: "hi"}
	if plain.DeliveryFor(Recipient{Address: "1"}).HasMedia() {
		t.Fatal("HasMedia() = true for text-only delivery")
	}
}

func TestBatchStatusCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	rate := 1.5
	original := BatchStatus{
		Status:            StatusCompleted,
		Total:             2,
		Sent:              1,
		Failed:            1,
		StartTime:         time.Unix(1_700_000_000, 0),
		FailedRecipients:  []FailedRecipient{{Address: "B", Error: "boom"}},
		MessagesPerSecond: &rate,
	}

	cp := original.Clone()
	cp.FailedRecipients[0].Address = "mutated"
	*cp.MessagesPerSecond = 9

	if original.FailedRecipients[0].Address != "B" {
		t.Fatalf("original failed recipient mutated: %+v", original.FailedRecipients)
	}
	if *original.MessagesPerSecond != 1.5 {
		t.Fatalf("original rate mutated: %v", *original.MessagesPerSecond)
	}
	if cp.Attempted() != 2 {
		t.Fatalf("Attempted() = %d, want 2", cp.Attempted())
	}
}
