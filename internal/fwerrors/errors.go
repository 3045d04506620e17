// Package fwerrors defines the data-plane error taxonomy shared by the
// decoding and inspection packages. None of these are meant to be
// propagated up the call stack as fatal — callers log them at the
// appropriate level and bump a counter; the frame or sample in flight
// is always skipped rather than the agent being killed.
package fwerrors

import "errors"

// Data-plane error sentinels. Wrap these with fmt.Errorf("...: %w", ...)
// at the call site when additional context is useful; use errors.Is to
// classify a wrapped error.
var (
	// ErrDecodeFailure marks a single signal that could not be extracted
	// from an otherwise valid frame (e.g. its bit range overruns the
	// payload). Other signals in the same frame still decode.
	ErrDecodeFailure = errors.New("decode_failure")

	// ErrFormatInvalid marks a message format flagged invalid in the
	// dictionary. Decode is skipped but raw capture still proceeds.
	ErrFormatInvalid = errors.New("format_invalid")

	// ErrDictionaryAbsent means no active dictionary snapshot was loaded
	// when a frame arrived, or the frame's (channel, id) is unknown to it.
	ErrDictionaryAbsent = errors.New("dictionary_absent")

	// ErrExpressionTypeMismatch means a campaign expression evaluated to
	// undefined due to an operand type error; the campaign does not fire.
	ErrExpressionTypeMismatch = errors.New("expression_type_mismatch")

	// ErrQueueOverflow means a bounded queue rejected a push because it
	// was full under the configured overflow policy.
	ErrQueueOverflow = errors.New("queue_overflow")

	// ErrRetryAbort names a retry sequence stopped externally before a
	// non-retry outcome. The retry executor reports that case to
	// Retryable.OnFinished as the retry.Abort outcome, not as this error.
	ErrRetryAbort = errors.New("retry_abort")

	// ErrOutOfOrderSample means a sample's timestamp was older than the
	// last accepted sample for that signal and was dropped.
	ErrOutOfOrderSample = errors.New("out_of_order_sample")

	// ErrCampaignMalformed means a cloud-pushed campaign document failed
	// validation; the previous active campaign set is kept unchanged.
	ErrCampaignMalformed = errors.New("campaign_malformed")

	// ErrDictionaryMalformed means a cloud-pushed decoder manifest failed
	// validation; the previous dictionary snapshot is kept unchanged.
	ErrDictionaryMalformed = errors.New("dictionary_malformed")
)
