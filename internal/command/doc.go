// Package command is the child side of a dispatched command.
//
// A command package's executable decodes the argument array it was handed
// by the dispatcher and runs it through Execute, which validates the array,
// splits it into positionals and options, and then calls the command's
// Setup and Run hooks in that order.
package command
