// Package timeapi provides a client for the world time service.
//
// The client issues one HTTP GET per lookup, either against the IP-geolocated
// endpoint or a per-zone endpoint, and decomposes the returned ISO-8601
// datetime into a calendar date and an HH:MM time:
//
//	GET <base>/api/ip
//	GET <base>/api/timezone/<zone>
//
// Only the "datetime" field of the JSON payload is required. Lookups are never
// retried or cached by the client; callers that want retries wrap FetchTime
// themselves.
//
// Failures are reported as *LookupError with one of three kinds:
//   - KindNetwork: transport failure or non-2xx status
//   - KindNoData: empty response body
//   - KindFormat: undecodable JSON, missing "datetime", or unknown zone
//
// Example usage:
//
//	client, err := timeapi.NewClient(timeapi.DefaultBaseURL, log)
//	if err != nil {
//		return err
//	}
//	client.Subscribe(func(zone timeapi.Zone, res timeapi.Result, err error) {
//		// hand off to the goroutine that owns the display
//	})
//
//	res, err := client.FetchTime(ctx, "Europe/Paris")
//	if errors.Is(err, timeapi.ErrNetwork) {
//		// ...
//	}
//	fmt.Println(res.Date, res.Time)
package timeapi
