/*
Package httprecorder records the requests a test server receives, so tests of an HTTP
client can assert on the method, headers and payloads it sent.
*/
package httprecorder
