// Package checkin records attendance for people who log in to an online
// service, using the first configured schedule whose check-in window is
// open at login time.
package checkin
