// Package notify sends the account confirmation email a login with an
// unconfirmed account triggers.
//
// The email body is an html/template rendered with these merge fields:
//
//	{{ .ConfirmAccountUrl }}  absolute URL of the confirmation page
//	{{ .Person.FirstName }}   the person the login belongs to
//	{{ .User.UserName }}      the login name
package notify
