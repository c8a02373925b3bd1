/*
Package session serializes access to persisted form sessions.

The Manager pairs per-session in-process mutexes with an optional
distributed locker so a load-mutate-save cycle on one session never
interleaves with another, whether the competitor runs in the same process
or in another replica.
*/
package session
