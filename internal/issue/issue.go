// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	DefinitionInvalidId Id = iota + 1
	UnknownVersionId
	UnknownPackageId
	PackageNotActiveId
	CyclicDependencyId
	BodyExecutionFailedId
	SessionPersistenceId
	AliasCycleId
	NoSearchPathId
	ConfigLoadFailedId
	ShellNotSupportedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id    Id          // ID used to lookup the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
	links []HttpLink  // external references
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Links() []HttpLink {
	return slices.Clone(i.links)
}

func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.links) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.links {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	definitionInvalidIssue = &Issue{
		id: DefinitionInvalidId,
		mdMsg: `
# The package definition is invalid

A ` + "`.pkg`" + ` file starts with an ini header between ` + "`'''`" + ` lines, followed by a shell body.

## Things you can try
- Check every definition on the search path:
~~~
$ setpkg check
~~~
- Make sure ` + "`[main]`" + ` names an ` + "`executable-path`" + ` and a ` + "`default-version`" + ` listed under ` + "`[versions]`" + `.
- Version and alias names may only use letters, digits, ` + "`.`" + `, ` + "`_`" + ` and ` + "`-`" + `.`,
		links: []HttpLink{"https://pkg.go.dev/gopkg.in/ini.v1"},
	}

	unknownVersionIssue = &Issue{
		id: UnknownVersionId,
		mdMsg: `
# Unknown version

The requested version is neither listed in ` + "`[versions]`" + `, an alias, nor matched by ` + "`version-regex`" + `.

## Things you can try
- See the versions and aliases of a package:
~~~
$ setpkg info <package>
~~~
- Check the ` + "`SETPKG_<NAME>_DEFAULT_VERSION`" + ` variable; it overrides the default version.`,
	}

	unknownPackageIssue = &Issue{
		id: UnknownPackageId,
		mdMsg: `
# Unknown package

No ` + "`<name>.pkg`" + ` file was found on the package search path.

## Things you can try
- List every package setpkg can see:
~~~
$ setpkg ls --available
~~~
- Add the directory holding the definition to ` + "`SETPKG_PATH`" + ` or to ` + "`search_paths`" + ` in the config file.`,
	}

	packageNotActiveIssue = &Issue{
		id: PackageNotActiveId,
		mdMsg: `
# The package is not set

Only packages active in the current session can be unset, and a version given to ` + "`unset`" + ` must match the active one.

## Things you can try
- List the active packages:
~~~
$ setpkg ls
~~~`,
	}

	cyclicDependencyIssue = &Issue{
		id: CyclicDependencyId,
		mdMsg: `
# Cyclic dependency

The ` + "`[requires]`" + ` or ` + "`[subs]`" + ` entries of these packages form a loop, so none of them can be set. Nothing was changed.

## Things you can try
- Report every static cycle on the search path:
~~~
$ setpkg check
~~~
- Narrow the version globs in ` + "`[requires]`" + ` so the loop no longer applies.`,
	}

	bodyExecutionFailedIssue = &Issue{
		id: BodyExecutionFailedId,
		mdMsg: `
# The package body failed

The shell body of the definition exited with an error, so the whole command was rolled back.

## Things you can try
- Run with debug logging to see what the body did:
~~~
$ SETPKG_LOG_LEVEL=debug setpkg set <package>
~~~
- External programs and file writes are disabled in bodies unless ` + "`body.allow_exec`" + ` is true in the config.`,
		links: []HttpLink{"https://pkg.go.dev/mvdan.cc/sh/v3/interp"},
	}

	sessionPersistenceIssue = &Issue{
		id: SessionPersistenceId,
		mdMsg: `
# The session record could not be saved

Your shell was not changed because its new state could not be stored.

## Things you can try
- Check that ` + "`session.dir`" + ` (default: the system temp directory) is writable.
- Switch backends with ` + "`SETPKG_SESSION_BACKEND=file`" + ` or ` + "`sqlite`" + `.`,
	}

	aliasCycleIssue = &Issue{
		id: AliasCycleId,
		mdMsg: `
# Alias cycle

An entry in ` + "`[aliases]`" + ` eventually points back to itself.

## Things you can try
- Make every alias chain end at a version listed in ` + "`[versions]`" + `.
- Validate the definition:
~~~
$ setpkg check
~~~`,
	}

	noSearchPathIssue = &Issue{
		id: NoSearchPathId,
		mdMsg: `
# No package search path

setpkg does not know where to look for ` + "`.pkg`" + ` files.

## Things you can try
- Export the search path in your shell startup file:
~~~
$ export SETPKG_PATH=/studio/packages:$HOME/packages
~~~
- Or add ` + "`search_paths`" + ` to the config file (` + "`setpkg config path`" + ` prints its location).`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# The configuration could not be loaded

## Things you can try
- Print the effective configuration and its source:
~~~
$ setpkg config dump
~~~
- Recreate a default file with ` + "`setpkg config init`" + `.`,
		links: []HttpLink{"https://cuelang.org/docs/"},
	}

	shellNotSupportedIssue = &Issue{
		id: ShellNotSupportedId,
		mdMsg: `
# Unsupported shell

setpkg can emit code for bash, zsh, sh, tcsh, csh, fish and cmd.

## Things you can try
- Name the shell explicitly:
~~~
$ eval "$(setpkg init --shell bash)"
~~~`,
	}

	issues = map[Id]*Issue{
		definitionInvalidIssue.Id():   definitionInvalidIssue,
		unknownVersionIssue.Id():      unknownVersionIssue,
		unknownPackageIssue.Id():      unknownPackageIssue,
		packageNotActiveIssue.Id():    packageNotActiveIssue,
		cyclicDependencyIssue.Id():    cyclicDependencyIssue,
		bodyExecutionFailedIssue.Id(): bodyExecutionFailedIssue,
		sessionPersistenceIssue.Id():  sessionPersistenceIssue,
		aliasCycleIssue.Id():          aliasCycleIssue,
		noSearchPathIssue.Id():        noSearchPathIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		shellNotSupportedIssue.Id():   shellNotSupportedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}
