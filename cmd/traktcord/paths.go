package main

import "tools.zach/dev/traktcord/internal/paths"

// DataPaths is [paths.DataDir] under a local name, since nearly every
// function in this package carries one.
type DataPaths = paths.DataDir
