// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

package session

// Banner is the large-letter wordmark shown to plain text clients on
// login. Operators can replace it with WithBanner.
const Banner = `
NN   NN  OOOOO  VV   VV   AAA     MM    MM UU   UU  SSSSS HH   HH
NNN  NN OO   OO VV   VV  AA AA    MMM  MMM UU   UU SS     HH   HH
NN N NN OO   OO VV   VV AA   AA   MM MM MM UU   UU  SSSS  HHHHHHH
NN  NNN OO   OO  VV VV  AAAAAAA   MM    MM UU   UU     SS HH   HH
NN   NN  OOOOO    VVV   AA   AA   MM    MM  UUUUU  SSSSS  HH   HH
`

// ConnectScreen greets a connection before login.
const ConnectScreen = Banner + `
Welcome to NovaMUSH!

  connect <name> <password>   log in to an existing account
  create <name> <password>    register a new account
  guest                       borrow a guest account
  quit                        disconnect
`
