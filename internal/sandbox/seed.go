package sandbox

import (
	"strconv"

	"transcoderctl/internal/api"
)

func scalePipeline(muxer, width, height, encoder string, bitrate int, parser string) string {
	return "filesrc location={{input_file}} ! qtdemux name=d " + muxer + " name=mux ! filesink location={{output_file}} " +
		"d.audio_0 ! queue max-size-buffers=0 max-size-bytes=0 max-size-time=0 ! decodebin ! audioconvert ! avenc_aac ! mux.audio_0 " +
		"d.video_0 ! queue max-size-buffers=0 max-size-bytes=0 max-size-time=0 ! decodebin ! videoscale ! " +
		"video/x-raw,width=" + width + ", height=" + height + " ! " + encoder + " bitrate=" + strconv.Itoa(bitrate) +
		" ! {{progress}} ! " + parser + " ! mux.video_0"
}

var seedPresets = []api.PresetInput{
	{
		Name: "Scale to 1080p x265 (1.5 mbit) mp4->mp4", InputType: "mp4", OutputType: "mp4",
		Resolution: "1920x1080", VideoEncoding: "x265", VideoBitrate: "1536", AudioEncoding: "aac", AudioBitrate: "128",
		Pipeline: scalePipeline("mp4mux", "1920", "1080", "x265enc", 1536, "h265parse"),
	},
	{
		Name: "Scale to 720p x265 (1 mbit) mp4->mp4", InputType: "mp4", OutputType: "mp4",
		Resolution: "1280x720", VideoEncoding: "x265", VideoBitrate: "1024", AudioEncoding: "aac", AudioBitrate: "128",
		Pipeline: scalePipeline("mp4mux", "1280", "720", "x265enc", 1024, "h265parse"),
	},
	{
		Name: "Scale to 720p x264 (1 mbit) mp4->mp4", InputType: "mp4", OutputType: "mp4",
		Resolution: "1280x720", VideoEncoding: "x264", VideoBitrate: "1536", AudioEncoding: "aac", AudioBitrate: "128",
		Pipeline: scalePipeline("mp4mux", "1280", "720", "x264enc", 1536, "h264parse"),
	},
	{
		Name: "Scale to 1080p x265 (1.5 mbit) mp4->mkv", InputType: "mp4", OutputType: "mkv",
		Resolution: "1920x1080", VideoEncoding: "x265", VideoBitrate: "1536", AudioEncoding: "aac", AudioBitrate: "128",
		Pipeline: scalePipeline("matroskamux", "1920", "1080", "x265enc", 1536, "h265parse"),
	},
	{
		Name: "Scale to 480p x265 (756 kbit) mp4->mkv", InputType: "mp4", OutputType: "mkv",
		Resolution: "640x480", VideoEncoding: "x265", VideoBitrate: "768", AudioEncoding: "aac", AudioBitrate: "128",
		Pipeline: scalePipeline("matroskamux", "640", "480", "x265enc", 768, "h265parse"),
	},
}
