package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback action constants. Telegram limits callback data to 64 bytes, so they are short.
const (
	actionSelect   = "q"
	actionSubmit   = "s"
	actionReset    = "r"
	actionHistory  = "h"
	actionGenerate = "g"
	actionNoop     = "noop"
)

// History sub-actions.
const (
	historyDetails = "d"
	historyClose   = "c"
	historyRefresh = "r"
)

// Generate sub-actions.
const (
	generateRetry = "r"
)

// callbackData represents structured callback data.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

// encode creates callback string.
func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + ":" + strings.Join(cd.Params, ":")
}

// decodeCallback parses callback data string.
func decodeCallback(data string) callbackData {
	parts := strings.Split(data, ":")
	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

func (cd callbackData) param(i int) string {
	if i < 0 || i >= len(cd.Params) {
		return ""
	}
	return cd.Params[i]
}

func (cd callbackData) intParam(i int) (int, error) {
	n, err := strconv.Atoi(cd.param(i))
	if err != nil {
		return 0, fmt.Errorf("callback %q param %d: %w", cd.Raw, i, err)
	}
	return n, nil
}

func (cd callbackData) int64Param(i int) (int64, error) {
	n, err := strconv.ParseInt(cd.param(i), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("callback %q param %d: %w", cd.Raw, i, err)
	}
	return n, nil
}

// buildSelectCallback builds callback data for choosing option of question in a session.
func buildSelectCallback(sessionID int64, question, option int) string {
	return callbackData{
		Action: actionSelect,
		Params: []string{
			strconv.FormatInt(sessionID, 10),
			strconv.Itoa(question),
			strconv.Itoa(option),
		},
	}.encode()
}

// buildSubmitCallback builds callback data for grading a session.
func buildSubmitCallback(sessionID int64) string {
	return callbackData{
		Action: actionSubmit,
		Params: []string{strconv.FormatInt(sessionID, 10)},
	}.encode()
}

// buildResetCallback builds callback data for clearing the answers of a session.
func buildResetCallback(sessionID int64) string {
	return callbackData{
		Action: actionReset,
		Params: []string{strconv.FormatInt(sessionID, 10)},
	}.encode()
}

func buildHistoryDetailsCallback(quizID int64) string {
	return callbackData{
		Action: actionHistory,
		Params: []string{historyDetails, strconv.FormatInt(quizID, 10)},
	}.encode()
}

func buildHistoryCloseCallback() string {
	return callbackData{Action: actionHistory, Params: []string{historyClose}}.encode()
}

func buildHistoryRefreshCallback() string {
	return callbackData{Action: actionHistory, Params: []string{historyRefresh}}.encode()
}

func buildGenerateRetryCallback() string {
	return callbackData{Action: actionGenerate, Params: []string{generateRetry}}.encode()
}

func buildNoopCallback() string {
	return actionNoop
}
