package client

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var (
	jsonStandard = jsoniter.ConfigCompatibleWithStandardLibrary
	jsonNumber   = jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		UseNumber:              true,
	}.Froze()
)

func jsonAPI(useNumber bool) jsoniter.API {
	if useNumber {
		return jsonNumber
	}
	return jsonStandard
}

// decodeJSON unmarshals data into dst, reporting malformed input as ErrDecode.
func decodeJSON(api jsoniter.API, data []byte, dst any) error {
	if err := api.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: json: %w", ErrDecode, err)
	}
	return nil
}
