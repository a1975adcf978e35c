// Package assertions evaluates step validators against a captured subject.
//
// A validator names a comparator, a check and an expected value:
//
//	validate:
//	  - eq: ["status_code", 200]
//	  - contains: ["body.tags", "go"]
//	  - len_gt: ["body.items", 0]
//	  - json_schema: ["body", "schemas/user.json"]
//
// Comparators also accept long-form and symbolic aliases (equal, less_than, ==,
// starts_with, length_equal, ...). Boolean expressions listed under
// validate_script are evaluated with expr against the step environment.
package assertions
