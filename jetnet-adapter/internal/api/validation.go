package api

import (
	"fmt"
	"strings"
)

// maxBatchItems bounds a single batch request.
const maxBatchItems = 500

// Validate checks the request shape before dispatch.
func (r *OperationRequest) Validate() error {
	if err := validateAccount(r.Account); err != nil {
		return err
	}
	if len(r.Items) > maxBatchItems {
		return fmt.Errorf("items exceeds the limit of %d", maxBatchItems)
	}
	return nil
}

// Validate checks the request shape before dispatch.
func (r *ToolRequest) Validate() error {
	return validateAccount(r.Account)
}

// Accounts name secrets ({env}/{account}/jetnet), so they must be a single
// path segment.
func validateAccount(account string) error {
	if account == "" {
		return nil
	}
	if strings.ContainsAny(account, "/ \t\n") {
		return fmt.Errorf("account must be a single token without slashes or spaces")
	}
	return nil
}
