// Package transfer moves media between the local disk and the backend's
// object storage: opening source files for upload and streaming finished
// outputs down through presigned URLs.
//
// Downloads land in a temporary file beside the destination and are renamed
// into place only after the body is fully written, so an interrupted
// download never leaves a truncated file under the final name. When the
// server advertises a size, free space is checked before writing.
package transfer
