// Package mail delivers the outbound messages of authcore: email OTP codes,
// email verification links and password reset links.
//
// [Sender] is the delivery collaborator. [SMTPSender] talks to a relay,
// [LogSender] writes messages to a zerolog logger for development and
// [Recorder] keeps them in memory for tests. [Renderer] turns the embedded
// templates into subject and HTML body pairs.
package mail
