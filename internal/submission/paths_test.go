package submission

import "testing"

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, in, out, want string
	}{
		{"abc123_in.mkv", "mkv", "mp4", "abc123_out.mp4"},
		{"uploads/abc123_in.mkv", "mkv", "webm", "uploads/abc123_out.webm"},
		{"abc123_in.mkv", ".mkv", ".mp4", "abc123_out.mp4"},
		{"movie.mov", "mkv", "mp4", "movie_out.mp4"},
		{"raw", "mkv", "mp4", "raw_out.mp4"},
		{"", "mkv", "mp4", ""},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.input, tt.in, tt.out); got != tt.want {
			t.Errorf("OutputPath(%q, %q, %q) = %q, want %q", tt.input, tt.in, tt.out, got, tt.want)
		}
	}
}

func TestUploadName(t *testing.T) {
	tests := []struct {
		owner, file, want string
	}{
		{"abc123", "holiday.mkv", "abc123_in.mkv"},
		{"abc123", "/home/me/clip.final.MP4", "abc123_in.MP4"},
		{"abc123", `C:\videos\clip.mov`, "abc123_in.mov"},
		{"abc123", "noext", "abc123_in"},
	}
	for _, tt := range tests {
		if got := UploadName(tt.owner, tt.file); got != tt.want {
			t.Errorf("UploadName(%q, %q) = %q, want %q", tt.owner, tt.file, got, tt.want)
		}
	}
}
