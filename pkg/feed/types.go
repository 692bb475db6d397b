package feed

import "encoding/json"

// upstream response envelope for one feed page. Items stay untyped here,
// the normalizer validates them into domain.Post at the boundary.
type pageResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		HasMore        bool             `json:"has_more"`
		Offset         string           `json:"offset"`
		UpdateBaseline string           `json:"update_baseline"`
		Items          []map[string]any `json:"items"`
	} `json:"data"`
}

// upstream codes signalling an invalid or expired credential
const (
	codeNotLoggedIn  = -101
	codeCSRFFailed   = -111
	codeAccessDenied = -352
)

func isAuthCode(code int) bool {
	return code == codeNotLoggedIn || code == codeCSRFFailed || code == codeAccessDenied
}

// decodePage parses a raw page body into the envelope
func decodePage(body []byte) (*pageResponse, error) {
	var page pageResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
