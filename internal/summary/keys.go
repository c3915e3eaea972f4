package summary

import (
	"path"
	"strconv"
	"strings"
)

const (
	MeetingLogFolder   = "meeting_logs"
	FinalOutputFolder  = "Summarize"
	RecapInputFolder   = "Request_Recap"
	RecapOutputFolder  = "Recap"
	recapRequestSuffix = "_request_recap"
	recapOutputSuffix  = "_recap"
	finalOutputSuffix  = "_final"
	jsonExtension      = ".json"
)

// MeetingLogKey is where the end-of-session snapshot for fileID lives.
func MeetingLogKey(fileID string) string {
	return path.Join(MeetingLogFolder, fileID+jsonExtension)
}

func FinalOutputKey(fileID string) string {
	return path.Join(FinalOutputFolder, fileID+finalOutputSuffix+jsonExtension)
}

// RecapRequestID names the recap input document for one request.
func RecapRequestID(fileID, requestID string) string {
	return fileID + "_" + requestID + recapRequestSuffix
}

func RecapInputKey(inputFolder, requestFileID string) string {
	return path.Join(inputFolder, requestFileID+jsonExtension)
}

// RecapOutputKey derives the output key for a recap input id. A trailing
// "_request_recap" is replaced by "_recap" and a cut-off id, when set, is
// appended.
func RecapOutputKey(outputFolder, requestFileID string, endID int64) string {
	base := strings.TrimSuffix(requestFileID, recapRequestSuffix)
	name := base + recapOutputSuffix
	if endID > 0 {
		name += "_" + strconv.FormatInt(endID, 10)
	}
	return path.Join(outputFolder, name+jsonExtension)
}
