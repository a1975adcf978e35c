// Package builtin provides the function registry used by template calls
// such as ${uuid()} or ${parameterize(accounts.csv)}.
//
// Names are resolved through an ordered chain of strategies:
//   - project functions registered by the host application
//   - parameterize(path) / P(path): load CSV or XLSX rows
//   - environ(name) / ENV(name): read the project or process environment
//   - extension helpers such as multipart_encoder, loaded on first use
//   - the builtin library: uuid, timestamp, get_timestamp, random,
//     randomString, base64, md5, sha256, urlEncode, date, json, sleep,
//     wait_for, oauth2_token, ...
//   - global fallbacks: len, str, int, float, bool, max, min, sum, abs,
//     round, upper, lower
package builtin
