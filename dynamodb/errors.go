package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/slackmgr/projectindex/store"
)

// retryableCodes are API error codes that indicate a transient failure.
var retryableCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ThrottlingException":                    true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
	"TransactionConflictException":           true,
	"TransactionInProgressException":         true,
}

// mapError wraps err with the store error it corresponds to, keeping the
// original error in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var conditionFailed *dynamodbtypes.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}

	var canceled *dynamodbtypes.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %w", store.ErrConflict, err)
			}
		}

		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && retryableCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	return err
}
