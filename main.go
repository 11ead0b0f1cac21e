// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/setpkg/setpkg/cmd/setpkg"

func main() {
	cmd.Execute()
}
