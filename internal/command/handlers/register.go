// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NovaMUSH Contributors

// Package handlers provides the built-in command sets: the character
// set active while puppeting and the account set active for any
// authenticated session.
package handlers

import (
	"github.com/novamush/novamush/internal/command"
)

// Built-in set names and merge priorities. The character set outranks
// the account set so in-character commands win name collisions.
const (
	CharacterSetName     = "character-core"
	CharacterSetPriority = 1

	AccountSetName     = "account-core"
	AccountSetPriority = 0
)

// AdminLock gates the staff-only commands.
const AdminLock = "cmd:perm(admin)"

// RegisterAll builds the built-in sets and adds them to the catalog.
// Panics on a registration failure, which indicates a programming
// error in the descriptor tables.
func RegisterAll(catalog *command.Catalog) {
	mustAdd := func(set *command.CmdSet, d command.Descriptor) {
		if err := set.Add(d); err != nil {
			panic("failed to register core command " + d.Key + ": " + err.Error())
		}
	}

	character := command.NewCmdSet(CharacterSetName, CharacterSetPriority)

	mustAdd(character, command.Descriptor{
		Key:        "look",
		Aliases:    []string{"l"},
		ArgPattern: command.WordBoundary(),
		Parse:      command.ParseMuxStyle,
		Category:   "General",
		Run:        LookHandler,
		Help:       "Look at your surroundings or a target",
		Usage:      "look [target]",
		HelpText: `## Look

Examine your surroundings or someone present.

### Usage

- ` + "`look`" + ` - View the current location
- ` + "`look <name>`" + ` - Look at a character in the room`,
	})

	mustAdd(character, command.Descriptor{
		Key:        "say",
		ArgPattern: command.WordBoundary(),
		Category:   "Communication",
		Run:        SayHandler,
		Help:       "Speak to everyone in the room",
		Usage:      "say <message>",
		HelpText: `## Say

Speak out loud. Everyone in your location hears it.

### Usage

- ` + "`say <message>`" + `
- ` + "`\"<message>`" + ` - Shortcut

### Examples

- ` + "`say Hello there`" + ` - Others see: Brand says, "Hello there"`,
	})

	// The quote shortcut is its own descriptor: no boundary pattern,
	// so `"hello` parses without a space after the quote.
	mustAdd(character, command.Descriptor{
		Key:      `"`,
		Category: "Communication",
		Run:      SayHandler,
		Help:     "Speak to everyone in the room",
		Usage:    `"<message>`,
	})

	mustAdd(character, command.Descriptor{
		Key:        "pose",
		Aliases:    []string{"emote"},
		ArgPattern: command.WordBoundary(),
		Category:   "Communication",
		Run:        PoseHandler,
		Help:       "Act out something, prefixed with your name",
		Usage:      "pose <action>",
		HelpText: `## Pose

Describe an action. Your name is prepended.

### Usage

- ` + "`pose <action>`" + ` or ` + "`:<action>`" + ` - "Brand smiles."
- ` + "`;<action>`" + ` - No space after your name: ` + "`;'s eyes gleam`" + ` gives "Brand's eyes gleam."`,
	})

	mustAdd(character, command.Descriptor{
		Key:      ":",
		Category: "Communication",
		Run:      PoseHandler,
		Help:     "Act out something, prefixed with your name",
		Usage:    ":<action>",
	})

	mustAdd(character, command.Descriptor{
		Key:      ";",
		Category: "Communication",
		Run:      SemiposeHandler,
		Help:     "Pose with no space after your name",
		Usage:    ";<action>",
	})

	mustAdd(character, command.Descriptor{
		Key:        "who",
		ArgPattern: command.WordBoundary(),
		Category:   "General",
		Run:        WhoHandler,
		Help:       "See who is online",
		Usage:      "who",
		HelpText: `## Who

List connected players with connect and idle times. Staff also see
each session's remote address.`,
	})

	mustAdd(character, command.Descriptor{
		Key:        "help",
		ArgPattern: command.WordBoundary(),
		Category:   "General",
		Run:        HelpHandler(catalog),
		Help:       "List commands or show help for one",
		Usage:      "help [command]",
		HelpText: `## Help

Without arguments, lists the commands available to you grouped by
category. With a command name, shows its usage and full help.`,
	})

	mustAdd(character, command.Descriptor{
		Key:        "quit",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "General",
		Run:        QuitHandler,
		Help:       "Disconnect from the game",
		Usage:      "quit",
		HelpText: `## Quit

Disconnect your session. Your characters remain where they are.`,
	})

	mustAdd(character, command.Descriptor{
		Key:        "@option",
		Aliases:    []string{"@options"},
		ArgPattern: command.WordBoundary(),
		Parse:      command.ParseMuxStyle,
		Scope:      command.ScopeAccount,
		Category:   "Settings",
		Run:        OptionHandler,
		Help:       "Show or change protocol options",
		Usage:      "@option [<name>=<value>]",
		HelpText: `## @option

Show or change your session's protocol options. Changes are saved on
your account and restored on your next login.

### Usage

- ` + "`@option`" + ` - List current options
- ` + "`@option <name>=<value>`" + ` - Set an option

### Examples

- ` + "`@option ansi=true`" + `
- ` + "`@option screenwidth=120`" + ``,
	})

	account := command.NewCmdSet(AccountSetName, AccountSetPriority)

	// who, help, and quit are also reachable while out of character;
	// the character set's copies shadow these whenever one is active.
	mustAdd(account, command.Descriptor{
		Key:        "who",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "General",
		Run:        WhoHandler,
		Help:       "See who is online",
		Usage:      "who",
	})

	mustAdd(account, command.Descriptor{
		Key:        "help",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "General",
		Run:        HelpHandler(catalog),
		Help:       "List commands or show help for one",
		Usage:      "help [command]",
	})

	mustAdd(account, command.Descriptor{
		Key:        "quit",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "General",
		Run:        QuitHandler,
		Help:       "Disconnect from the game",
		Usage:      "quit",
	})

	mustAdd(account, command.Descriptor{
		Key:        "@ic",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "Characters",
		Run:        ICHandler,
		Help:       "Take control of a character",
		Usage:      "@ic [character]",
		HelpText: `## @ic

Puppet one of your characters and enter the world.

### Usage

- ` + "`@ic`" + ` - Return to your last character
- ` + "`@ic <name>`" + ` - Puppet the named character

If another of your sessions is puppeting the character, control moves
to this session.`,
	})

	mustAdd(account, command.Descriptor{
		Key:        "@ooc",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "Characters",
		Run:        OOCHandler,
		Help:       "Release your character and go out-of-character",
		Usage:      "@ooc",
		HelpText: `## @ooc

Stop puppeting your character. The character stays in the world; you
act as your account until the next ` + "`@ic`" + `.`,
	})

	mustAdd(account, command.Descriptor{
		Key:        "@quell",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "Settings",
		Run:        QuellHandler,
		Help:       "Use your character's permissions instead of your account's",
		Usage:      "@quell",
		HelpText: `## @quell

Drop to your character's own permission level. Staff use this to see
the game as players do. Has no effect if already quelled.`,
	})

	mustAdd(account, command.Descriptor{
		Key:        "@unquell",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Category:   "Settings",
		Run:        UnquellHandler,
		Help:       "Restore your account's permissions",
		Usage:      "@unquell",
	})

	mustAdd(account, command.Descriptor{
		Key:        "@wall",
		ArgPattern: command.WordBoundary(),
		Scope:      command.ScopeAccount,
		Lock:       AdminLock,
		Category:   "Admin",
		Run:        WallHandler,
		Help:       "Broadcast a message to every connected session",
		Usage:      "@wall <message>",
		HelpText: `## @wall

Send an announcement to every connected session.

### Permissions

Requires admin.`,
	})

	mustAdd(account, command.Descriptor{
		Key:        "@boot",
		ArgPattern: command.WordBoundary(),
		Parse:      command.ParseMuxStyle,
		Scope:      command.ScopeAccount,
		Lock:       AdminLock,
		Category:   "Admin",
		Run:        BootHandler,
		Help:       "Disconnect an account or character",
		Usage:      "@boot <target>[=<reason>]",
		HelpText: `## @boot

Disconnect every session of the named account, or the session
puppeting the named character.

### Usage

- ` + "`@boot <account>`" + `
- ` + "`@boot <character>=<reason>`" + `

The target's boot lock is honored: accounts that lock boot above
admin cannot be removed by admins.

### Permissions

Requires admin.`,
	})

	catalog.AddCharacterSet(character)
	catalog.AddAccountSet(account)
}
