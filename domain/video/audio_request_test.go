package video

import (
	"strings"
	"testing"

	"segment-selector/domain/selection"
)

func TestNewAudioExtractionRequest(t *testing.T) {
	clip, err := NewClipRequest("/videos/talk.mp4", selection.Submission{Start: 300, End: 600})
	if err != nil {
		t.Fatalf("NewClipRequest() unexpected error: %v", err)
	}

	tests := []struct {
		name        string
		clip        *ClipRequest
		bitrate     string
		wantBitrate string
		wantErr     bool
		errContains string
	}{
		{
			name:        "explicit bitrate",
			clip:        clip,
			bitrate:     "320k",
			wantBitrate: "320k",
		},
		{
			name:        "default bitrate",
			clip:        clip,
			bitrate:     "",
			wantBitrate: DefaultAudioBitrate,
		},
		{
			name:        "nil clip",
			clip:        nil,
			wantErr:     true,
			errContains: "clip request is required",
		},
		{
			name:        "invalid clip",
			clip:        &ClipRequest{SourcePath: "/videos/talk.mp4", Start: Timestamp{Minutes: 2}, End: Timestamp{Minutes: 1}},
			wantErr:     true,
			errContains: "must be after start time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewAudioExtractionRequest(tt.clip, tt.bitrate)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewAudioExtractionRequest() expected error, got nil")
					return
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewAudioExtractionRequest() error = %q, want it to contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAudioExtractionRequest() unexpected error: %v", err)
			}
			if req.Bitrate != tt.wantBitrate {
				t.Errorf("Bitrate = %q, want %q", req.Bitrate, tt.wantBitrate)
			}
			if req.Start != tt.clip.Start || req.End != tt.clip.End {
				t.Errorf("range = %s-%s, want %s-%s", req.Start, req.End, tt.clip.Start, tt.clip.End)
			}
		})
	}
}

func TestAudioExtractionRequest_OutputPath(t *testing.T) {
	clip, _ := NewClipRequest("/videos/talk.mp4", selection.Submission{Start: 300, End: 600})
	req, err := NewAudioExtractionRequest(clip, "")
	if err != nil {
		t.Fatalf("NewAudioExtractionRequest() unexpected error: %v", err)
	}

	if got, want := req.OutputFilename(), "talk_00-05-00_00-10-00.mp3"; got != want {
		t.Errorf("OutputFilename() = %q, want %q", got, want)
	}
	if got, want := req.OutputPath("/audio"), "/audio/talk_00-05-00_00-10-00.mp3"; got != want {
		t.Errorf("OutputPath() = %q, want %q", got, want)
	}
}
