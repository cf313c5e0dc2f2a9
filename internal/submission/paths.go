package submission

import (
	"path"
	"strings"
)

// UploadName is the storage name for a source file uploaded for owner:
// "<owner>_in.<ext>", keeping the original extension.
func UploadName(owner, filename string) string {
	ext := extension(filename)
	if ext == "" {
		return owner + "_in"
	}
	return owner + "_in." + ext
}

// OutputPath derives the output object path from the uploaded input path by
// replacing the "_in.<inputType>" marker with "_out.<outputType>". Inputs
// without the marker get "_out.<outputType>" in place of their extension so
// the output never overwrites the input.
func OutputPath(inputPath, inputType, outputType string) string {
	inputType = strings.TrimPrefix(strings.TrimSpace(inputType), ".")
	outputType = strings.TrimPrefix(strings.TrimSpace(outputType), ".")
	if inputPath == "" || outputType == "" {
		return ""
	}
	marker := "_in." + inputType
	if inputType != "" && strings.Contains(inputPath, marker) {
		return strings.Replace(inputPath, marker, "_out."+outputType, 1)
	}
	base := strings.TrimSuffix(inputPath, path.Ext(inputPath))
	return base + "_out." + outputType
}

func extension(filename string) string {
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return filename[idx+1:]
}
