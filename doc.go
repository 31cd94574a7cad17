// Package main provides the entry point for the PeerHive social-networking
// backend. It runs a web server using the Fiber framework that serves
// server-rendered views for user groups, posts with attachments, reactions,
// and the group-membership workflow (invitations, join requests, approvals,
// roles). The application uses gorm for data persistence against a relational
// database.
package main
