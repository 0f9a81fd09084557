// Package scaffold renders a template package's files into a project
// directory. Every file is run through Go's text/template with the project
// data, except ignored paths, Handlebars sources and binary files, which are
// copied verbatim.
package scaffold
