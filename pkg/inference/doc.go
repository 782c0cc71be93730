// Package inference calls a vision language model to extract structured
// events from Instagram post content.
//
// The package has two layers. Client is a thin OpenAI-compatible chat
// completions client that maps HTTP failures onto the pipeline's error
// taxonomy, including server-directed Retry-After values on throttling
// responses. Gateway sits above it and owns the extraction call policy:
//
//   - Token cost is estimated up front and passed through quota admission
//     control before any network traffic happens.
//   - Responses are constrained to a predeclared JSON schema, so the model
//     output is directly decodable into events.RawExtraction.
//   - Throttling responses are retried a bounded number of times, honoring
//     Retry-After when the provider sends one. All other failures abandon
//     the post immediately; the orchestrator decides whether to retry it on
//     a later run.
//
// A nil result from Gateway.Extract is a normal outcome, covering quota
// refusal, exhausted retries, hard provider errors, and malformed output.
//
// Usage:
//
//	client := inference.NewClient(endpoint, apiKey, 120*time.Second, log)
//	gw := inference.NewGateway(client, tracker, model, 0.3, 4000, log)
//
//	raw := gw.Extract(ctx, &inference.Request{
//	    Username: "lincolnhigh",
//	    Caption:  caption,
//	    Images:   images,
//	})
//	if raw == nil {
//	    // skipped or failed; the post stays pending
//	}
package inference
