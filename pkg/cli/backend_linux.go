package cli

// The goble backend drives the HCI socket directly and avoids the bluez
// D-Bus dependency, so it is the default on Linux.
const defaultBackend = BackendGoble
