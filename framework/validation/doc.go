// Package validation checks flat string maps against pipe-separated rules.
//
//	v := validation.Make(map[string]string{"LOG_LEVEL": "loud"}, validation.Rules{
//	    "LOG_LEVEL": "sometimes|in:debug,info,warn,warning,error",
//	})
//	if v.Fails() {
//	    fmt.Println(v.Errors().First("LOG_LEVEL"))
//	}
//
// # Available rules
//
//	required              field must be present and non-blank
//	required_if:F,val     required when field F equals val
//	sometimes             skip remaining rules when the field is empty
//	integer               parseable as int
//	boolean               accepted by strconv.ParseBool
//	duration              accepted by time.ParseDuration
//	url                   absolute http or https URL
//	host_port             host:port, host may be empty
//	max:N                 string length bound, in runes
//	in:a,b,c              one of the listed values, case-insensitive
//	gte:N / lte:N         numeric bounds
//
// Validation stops at the first failing rule of each field.
package validation
