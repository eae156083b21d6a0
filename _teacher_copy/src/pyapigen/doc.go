// Copyright 2017-2021 National Technology & Engineering Solutions of Sandia, LLC (NTESS).
// Under the terms of Contract DE-NA0003525 with NTESS, the U.S. Government retains certain
// rights in this software.

// pyapigen generates Python bindings for minimega. These bindings allow Python
// programs to talk to minimega over via a Unix domain socket.
//
// Heavily based on Devin's genapi.py.

package main
