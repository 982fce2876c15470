package report

import (
	"github.com/coilforge/coilqa-cli/internal/conformance"
	"github.com/coilforge/coilqa-cli/internal/utils"
)

// JSON renders the full result as indented JSON for machine consumers and
// ad-hoc inspection. It is the same shape the API serves, minus the envelope.
func JSON(res *conformance.Result) ([]byte, error) {
	return utils.PrettyJSON(res)
}
